package models

import (
	"strings"

	"BloodLink/pkg/flatstore"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var requestFields = []string{
	"alert_id", "hospital_id", "hospital_name", "bank_id", "blood_bank_name", "phone", "distance",
	"blood_group", "component", "units_needed", "urgency", "status", "date", "time",
}

var (
	BloodRequestTable = flatstore.Table{Name: "blood_requests", Fields: requestFields, Key: []string{"alert_id"}, Unique: true}
	AlertTable        = flatstore.Table{Name: "alerts", Fields: requestFields, Key: []string{"alert_id"}, Unique: true}

	InventoryTable = flatstore.Table{
		Name:   "inventory",
		Fields: []string{"blood_group", "component", "blood_group_id", "component_id", "units_available"},
		Key:    []string{"blood_group", "component", "blood_group_id", "component_id"},
		Unique: true,
	}

	// response tables are append-only logs; the key is only used for lookups
	AlertResponseTable = flatstore.Table{
		Name:   "alert_responses",
		Fields: []string{"alert_id", "hospital_id", "bank_id", "response", "units_used", "response_time"},
		Key:    []string{"alert_id", "hospital_id"},
	}
	BankResponseTable = flatstore.Table{
		Name:   "bb_responses",
		Fields: []string{"bank_id", "hospital_id", "alert_id", "status", "response_time"},
		Key:    []string{"bank_id", "hospital_id"},
	}

	// donors carry whatever profile columns the import had
	DonorTable     = flatstore.Table{Name: "donors", Key: []string{"donor_id"}, Unique: true}
	BloodBankTable = flatstore.Table{
		Name:   "bloodbanks",
		Fields: []string{"bank_id", "name", "phone", "lat", "lon", "address"},
		Key:    []string{"bank_id"},
		Unique: true,
	}
	CredentialTable = flatstore.Table{
		Name:   "login",
		Fields: []string{"username", "password", "role", "entity_id"},
		Key:    []string{"username"},
		Unique: true,
	}

	EligibilityTable         = flatstore.Table{Name: "eligibility_responses", Fields: []string{"donor_id", "eligibility"}, Key: []string{"donor_id"}}
	HospitalEligibilityTable = flatstore.Table{Name: "hospital_eligibility_responses", Fields: []string{"donor_id", "eligibility"}, Key: []string{"donor_id"}}
)

// Alert and request statuses as persisted.
const (
	StatusSent      = "SENT"
	StatusPending   = "Pending"
	StatusResolved  = "Resolved"
	StatusCompleted = "Completed"
	StatusFailed    = "FAILED"
	StatusResolvedU = "RESOLVED"
	StatusAccepted  = "ACCEPTED"
)

var titleCase = cases.Title(language.English)

// NormalizeStatus maps the status spellings seen on the wire onto the stored
// ones. SENT and any casing of pending become Pending; unknown values come
// back title-cased.
func NormalizeStatus(raw string) string {
	s := strings.TrimSpace(raw)
	switch strings.ToUpper(s) {
	case "", StatusSent, "PENDING":
		return StatusPending
	case "RESOLVED":
		if s == strings.ToUpper(s) {
			return StatusResolvedU
		}
		return StatusResolved
	case "COMPLETED", "COMPLETE":
		return StatusCompleted
	case "FAILED", "FAIL":
		return StatusFailed
	case "ACCEPTED", "ACCEPT":
		return StatusAccepted
	}
	return titleCase.String(strings.ToLower(s))
}

// RespondStatus parses an operator outcome. Only FAILED, RESOLVED and ACCEPTED
// are accepted.
func RespondStatus(raw string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case StatusFailed, "FAIL":
		return StatusFailed, true
	case StatusResolvedU:
		return StatusResolvedU, true
	case StatusAccepted, "ACCEPT":
		return StatusAccepted, true
	}
	return "", false
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
