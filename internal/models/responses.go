package models

import (
	"strings"

	"BloodLink/pkg/flatstore"

	"github.com/spf13/cast"
)

func (r *Repo) ListAlertResponses() ([]flatstore.Row, error) {
	return r.store.Load(AlertResponseTable)
}

func (r *Repo) ListBankResponses() ([]flatstore.Row, error) {
	return r.store.Load(BankResponseTable)
}

// BankResponseFromRemote maps a bank response fetched from the bank service.
func BankResponseFromRemote(remote map[string]interface{}) flatstore.Row {
	row := make(flatstore.Row, len(BankResponseTable.Fields))
	for _, f := range BankResponseTable.Fields {
		if v, ok := remote[f]; ok && v != nil {
			row[f] = strings.TrimSpace(cast.ToString(v))
		}
	}
	row["status"] = NormalizeStatus(row["status"])
	if row["status"] == StatusPending {
		row["status"] = StatusSent
	}
	return row
}

// BankResponseKey identifies one status change of one alert; the hospital
// response poller dedups on it.
func BankResponseKey(row flatstore.Row) string {
	return strings.TrimSpace(row["alert_id"]) + "|" + strings.TrimSpace(row["status"])
}
