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

// ListAlerts returns every alert, or only those of bankID when it is set.
func (r *Repo) ListAlerts(bankID string) ([]flatstore.Row, error) {
	rows, err := r.store.Load(AlertTable)
	if err != nil {
		return nil, err
	}
	bankID = strings.TrimSpace(bankID)
	if bankID == "" {
		return rows, nil
	}
	out := make([]flatstore.Row, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row["bank_id"]) == bankID {
			out = append(out, row)
		}
	}
	return out, nil
}

// AlertFromRequest turns a remote blood request into a local alert row.
func AlertFromRequest(remote map[string]interface{}) flatstore.Row {
	row := make(flatstore.Row, len(requestFields))
	for _, f := range requestFields {
		if v, ok := remote[f]; ok && v != nil {
			row[f] = strings.TrimSpace(cast.ToString(v))
		}
	}
	row["status"] = NormalizeStatus(row["status"])
	return row
}

// transition moves alertID from Pending to status under the alert table lock.
// A missing alert is NotFound and an alert that already left Pending is a
// Conflict; neither writes the table.
func (r *Repo) transition(alertID, status string) (flatstore.Row, error) {
	alertID = strings.TrimSpace(alertID)
	if alertID == "" {
		return nil, errors.Validation("alert_id is required")
	}
	var updated flatstore.Row
	err := r.store.Update(AlertTable, func(rows []flatstore.Row) ([]flatstore.Row, error) {
		for i, row := range rows {
			if strings.TrimSpace(row["alert_id"]) != alertID {
				continue
			}
			current := NormalizeStatus(row["status"])
			if current != StatusPending {
				return nil, errors.Conflict("alert %s is already %s", alertID, current)
			}
			rows[i]["status"] = status
			updated = rows[i].Clone()
			return rows, nil
		}
		return nil, errors.NotFound("alert %s not found", alertID)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ResolveResult reports what a resolve or complete did to inventory.
type ResolveResult struct {
	Alert            flatstore.Row `json:"alert"`
	InventoryUpdated bool          `json:"inventory_updated"`
	UnitsAvailable   int           `json:"units_available"`
}

// ResolveAlert marks the alert Resolved and takes units out of the matching
// inventory row. units <= 0 falls back to the alert's units_needed.
func (r *Repo) ResolveAlert(ctx context.Context, alertID string, units int) (*ResolveResult, error) {
	alert, err := r.transition(alertID, StatusResolved)
	if err != nil {
		return nil, err
	}
	if units <= 0 {
		units = flatstore.IntOr(alert, "units_needed", 0)
	}
	res := &ResolveResult{Alert: alert}
	res.InventoryUpdated, res.UnitsAvailable = r.consume(ctx, alert["blood_group"], alert["component"], units)
	r.notify(ctx, notification.ScopeGlobal, notification.Entry{
		Type:    notification.TypeAlertUpdate,
		Message: fmt.Sprintf("Alert %s resolved with %d units", alert["alert_id"], units),
		AlertID: alert["alert_id"],
	}, r.caps.Global)
	return res, nil
}

type CompleteForm struct {
	AlertID    interface{} `json:"alert_id"`
	UnitsUsed  interface{} `json:"units_used"`
	BloodGroup string      `json:"blood_group"`
	Component  string      `json:"component"`
	HospitalID interface{} `json:"hospital_id"`
}

// CompleteAlert marks the alert Completed, decrements inventory for
// (blood_group, component) clamped at zero and appends an alert response.
// A missing inventory row does not undo the completion.
func (r *Repo) CompleteAlert(ctx context.Context, f CompleteForm, defaultHospitalID string) (*ResolveResult, error) {
	alertID := strings.TrimSpace(cast.ToString(f.AlertID))
	if alertID == "" {
		return nil, errors.Validation("alert_id is required")
	}
	units, err := util.ParseUnits(f.UnitsUsed)
	if err != nil || units < 0 {
		return nil, errors.Validation("units_used must be a non-negative integer")
	}

	alert, err := r.transition(alertID, StatusCompleted)
	if err != nil {
		return nil, err
	}
	group := firstNonEmpty(f.BloodGroup, alert["blood_group"])
	component := firstNonEmpty(f.Component, alert["component"])

	res := &ResolveResult{Alert: alert}
	res.InventoryUpdated, res.UnitsAvailable = r.consume(ctx, group, component, units)

	_, _, full := r.stamp()
	if err := r.store.Append(AlertResponseTable, flatstore.Row{
		"alert_id":      alertID,
		"hospital_id":   firstNonEmpty(cast.ToString(f.HospitalID), alert["hospital_id"], defaultHospitalID),
		"bank_id":       alert["bank_id"],
		"response":      StatusCompleted,
		"units_used":    cast.ToString(units),
		"response_time": full,
	}); err != nil {
		logger.Error("record alert response", zap.String("alert_id", alertID), zap.Error(err))
	}

	r.notify(ctx, notification.ScopeGlobal, notification.Entry{
		Type:       notification.TypeAlertUpdate,
		Message:    fmt.Sprintf("Alert %s completed: %d units of %s (%s) used", alertID, units, component, group),
		AlertID:    alertID,
		BloodGroup: group,
		Component:  component,
	}, r.caps.Global)
	return res, nil
}

type RespondForm struct {
	AlertID interface{} `json:"alert_id"`
	Status  string      `json:"status"`
	DonorID interface{} `json:"donor_id"`
}

// RespondAlert records an operator outcome (FAILED, RESOLVED or ACCEPTED) and
// appends a bank response. ACCEPTED with a donor emits SigAlertAccepted.
func (r *Repo) RespondAlert(ctx context.Context, f RespondForm) (flatstore.Row, error) {
	status, ok := RespondStatus(f.Status)
	if !ok {
		return nil, errors.Validation("status must be one of ACCEPTED, FAILED, RESOLVED")
	}
	alert, err := r.transition(cast.ToString(f.AlertID), status)
	if err != nil {
		return nil, err
	}

	_, _, full := r.stamp()
	if err := r.store.Append(BankResponseTable, flatstore.Row{
		"bank_id":       alert["bank_id"],
		"hospital_id":   alert["hospital_id"],
		"alert_id":      alert["alert_id"],
		"status":        status,
		"response_time": full,
	}); err != nil {
		logger.Error("record bank response", zap.String("alert_id", alert["alert_id"]), zap.Error(err))
	}

	r.notify(ctx, notification.ScopeGlobal, notification.Entry{
		Type:    notification.TypeAlertUpdate,
		Message: fmt.Sprintf("Alert %s marked %s", alert["alert_id"], status),
		AlertID: alert["alert_id"],
	}, r.caps.Global)

	donorID := strings.TrimSpace(cast.ToString(f.DonorID))
	if status == StatusAccepted && donorID != "" {
		util.Sig().Emit(SigAlertAccepted, &AlertAccepted{
			AlertID:    alert["alert_id"],
			DonorID:    donorID,
			BloodGroup: alert["blood_group"],
			Component:  alert["component"],
		})
	}
	return alert, nil
}

// PendingAlertCount counts alerts still waiting on the bank.
func (r *Repo) PendingAlertCount() (int, error) {
	rows, err := r.store.Load(AlertTable)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, row := range rows {
		if NormalizeStatus(row["status"]) == StatusPending {
			n++
		}
	}
	return n, nil
}
