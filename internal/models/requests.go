package models

import (
	"context"
	"fmt"
	"strings"

	"BloodLink/pkg/errors"
	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/logger"
	"BloodLink/pkg/notification"
	"BloodLink/pkg/util"

	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// BloodRequestForm is the body of POST request-blood. Numeric fields accept
// either JSON numbers or strings.
type BloodRequestForm struct {
	HospitalID    string      `json:"hospital_id"`
	HospitalName  string      `json:"hospital_name"`
	BloodBankName string      `json:"blood_bank_name"`
	BankID        interface{} `json:"bank_id"`
	Phone         string      `json:"phone"`
	Distance      interface{} `json:"distance"`
	BloodGroup    string      `json:"blood_group"`
	Component     string      `json:"component"`
	UnitsNeeded   interface{} `json:"units_needed"`
	Urgency       string      `json:"urgency"`
}

func (f BloodRequestForm) validate() (int, error) {
	if strings.TrimSpace(f.BloodGroup) == "" {
		return 0, errors.Validation("blood_group is required")
	}
	if strings.TrimSpace(f.Component) == "" {
		return 0, errors.Validation("component is required")
	}
	units, err := util.ParseUnits(f.UnitsNeeded)
	if err != nil || units <= 0 {
		return 0, errors.Validation("units_needed must be a positive integer")
	}
	return units, nil
}

// CreateBloodRequest appends a SENT request and the matching bank response
// row. The alert id is a millisecond timestamp. With WithLocalAlerts the
// request is also opened as a Pending alert under the same id.
func (r *Repo) CreateBloodRequest(ctx context.Context, f BloodRequestForm, defaultHospitalID, defaultBankID string) (flatstore.Row, error) {
	units, err := f.validate()
	if err != nil {
		return nil, err
	}
	date, clock, full := r.stamp()

	row := flatstore.Row{
		"hospital_id":     firstNonEmpty(f.HospitalID, defaultHospitalID),
		"hospital_name":   strings.TrimSpace(f.HospitalName),
		"bank_id":         firstNonEmpty(cast.ToString(f.BankID), defaultBankID),
		"blood_bank_name": strings.TrimSpace(f.BloodBankName),
		"phone":           strings.TrimSpace(f.Phone),
		"distance":        cast.ToString(f.Distance),
		"blood_group":     strings.TrimSpace(f.BloodGroup),
		"component":       strings.TrimSpace(f.Component),
		"units_needed":    cast.ToString(units),
		"urgency":         firstNonEmpty(f.Urgency, "Normal"),
		"status":          StatusSent,
		"date":            date,
		"time":            clock,
	}
	for attempt := 0; ; attempt++ {
		row["alert_id"] = r.nextID()
		err = r.store.Append(BloodRequestTable, row)
		if err == nil || !errors.IsConflict(err) || attempt == 3 {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	if err := r.store.Append(BankResponseTable, flatstore.Row{
		"bank_id":       row["bank_id"],
		"hospital_id":   row["hospital_id"],
		"alert_id":      row["alert_id"],
		"status":        StatusSent,
		"response_time": full,
	}); err != nil {
		logger.Warn("record bank response", zap.String("alert_id", row["alert_id"]), zap.Error(err))
	}
	if r.local {
		alert := row.Clone()
		alert["status"] = StatusPending
		if err := r.store.Append(AlertTable, alert); err != nil {
			logger.Warn("open local alert", zap.String("alert_id", row["alert_id"]), zap.Error(err))
		}
	}

	r.notify(ctx, notification.ScopeGlobal, notification.Entry{
		Type:       notification.TypeBloodRequest,
		Message:    RequestMessage(row),
		AlertID:    row["alert_id"],
		BloodGroup: row["blood_group"],
		Component:  row["component"],
	}, r.caps.Global)
	return row, nil
}

func (r *Repo) ListBloodRequests() ([]flatstore.Row, error) {
	return r.store.Load(BloodRequestTable)
}

// RequestMessage is the one-line summary used in notifications.
func RequestMessage(row flatstore.Row) string {
	who := firstNonEmpty(row["hospital_name"], "Hospital "+row["hospital_id"])
	msg := fmt.Sprintf("%s requests %s units of %s (%s)", who, row["units_needed"], row["component"], row["blood_group"])
	if u := strings.TrimSpace(row["urgency"]); u != "" {
		msg += " [" + u + "]"
	}
	return msg
}

// notify appends to a notification list. Notification failures never fail
// the operation that caused them.
func (r *Repo) notify(ctx context.Context, scope string, e notification.Entry, limit int) {
	if r.notes == nil {
		return
	}
	if err := r.notes.Append(ctx, scope, e, limit); err != nil {
		logger.Warn("append notification", zap.String("scope", scope), zap.Error(err))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
