package poller

import (
	"BloodLink/internal/models"
	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/notification"
)

// Listing paths served by the peers, relative to the API prefix.
const (
	RequestsPath  = "/blood-requests"
	ResponsesPath = "/responses"
)

// NewRequestPoller imports hospital blood requests as bank alerts.
func NewRequestPoller(hospitalURL, apiPrefix, secret string, repo *models.Repo, opts ...Option) *Poller {
	src := Source{BaseURL: hospitalURL, Path: apiPrefix + RequestsPath, ListField: "blood_requests", Secret: secret}
	tgt := Target{
		Table: models.AlertTable,
		Map:   models.AlertFromRequest,
		Notify: func(row flatstore.Row) notification.Entry {
			return notification.Entry{
				Type:       notification.TypeBloodRequest,
				Message:    models.RequestMessage(row),
				AlertID:    row["alert_id"],
				BloodGroup: row["blood_group"],
				Component:  row["component"],
			}
		},
		Scope: notification.ScopeGlobal,
		Cap:   repo.Caps().Global,
	}
	return New("requests", src, tgt, repo.Store(), append([]Option{WithNotes(repo.Notes())}, opts...)...)
}

// NewResponsePoller imports the bank's responses into the hospital's
// bb_responses log, one row per alert and status.
func NewResponsePoller(bankURL, apiPrefix, secret string, repo *models.Repo, opts ...Option) *Poller {
	src := Source{BaseURL: bankURL, Path: apiPrefix + ResponsesPath, ListField: "bank_responses", Secret: secret}
	tgt := Target{
		Table: models.BankResponseTable,
		Map:   models.BankResponseFromRemote,
		Key:   models.BankResponseKey,
		Notify: func(row flatstore.Row) notification.Entry {
			return notification.Entry{
				Type:    notification.TypeAlertUpdate,
				Message: "Blood bank " + row["bank_id"] + " marked request " + row["alert_id"] + " " + row["status"],
				AlertID: row["alert_id"],
			}
		},
		Scope: notification.ScopeGlobal,
		Cap:   repo.Caps().Global,
	}
	return New("responses", src, tgt, repo.Store(), append([]Option{WithNotes(repo.Notes())}, opts...)...)
}
