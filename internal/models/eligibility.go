package models

import (
	"strings"

	"BloodLink/pkg/errors"
	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/util"

	"github.com/spf13/cast"
)

type EligibilityForm struct {
	DonorID     interface{} `json:"donor_id"`
	Eligibility interface{} `json:"eligibility"`
}

func (f EligibilityForm) parse() (string, string, error) {
	donorID := strings.TrimSpace(cast.ToString(f.DonorID))
	if donorID == "" {
		return "", "", errors.Validation("Invalid input")
	}
	ok, err := util.ParseYesNo(f.Eligibility)
	if err != nil {
		return "", "", errors.Validation("Invalid input")
	}
	return donorID, util.YesNo(ok), nil
}

// StoreEligibility appends a donor's answer to t (the bank or hospital copy).
func (r *Repo) StoreEligibility(t flatstore.Table, f EligibilityForm) (flatstore.Row, error) {
	donorID, answer, err := f.parse()
	if err != nil {
		return nil, err
	}
	row := flatstore.Row{"donor_id": donorID, "eligibility": answer}
	if err := r.store.Append(t, row); err != nil {
		return nil, err
	}
	return row, nil
}

// GetEligibility returns the first answer recorded for donorID in t.
func (r *Repo) GetEligibility(t flatstore.Table, donorID string) (string, error) {
	donorID = strings.TrimSpace(donorID)
	if donorID == "" {
		return "", errors.Validation("Invalid input")
	}
	rows, err := r.store.Load(t)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if sameID(row["donor_id"], donorID) {
			return row["eligibility"], nil
		}
	}
	return "", errors.NotFound("Eligibility not found for donor")
}

// UpdateDonorEligibility sets the donor's eligible column.
func (r *Repo) UpdateDonorEligibility(f EligibilityForm) (string, string, error) {
	donorID, answer, err := f.parse()
	if err != nil {
		return "", "", err
	}
	err = r.store.Update(DonorTable, func(rows []flatstore.Row) ([]flatstore.Row, error) {
		// the donor header follows the first row
		if len(rows) > 0 {
			if _, ok := rows[0]["eligible"]; !ok {
				rows[0]["eligible"] = ""
			}
		}
		for i, row := range rows {
			if sameID(row["donor_id"], donorID) {
				rows[i]["eligible"] = answer
				return rows, nil
			}
		}
		return nil, errors.NotFound("Donor not found")
	})
	if err != nil {
		return "", "", err
	}
	return donorID, answer, nil
}

// AcceptedDonorsCount counts distinct donors whose first answer in t is yes.
func (r *Repo) AcceptedDonorsCount(t flatstore.Table) (int, error) {
	rows, err := r.store.Load(t)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(rows))
	n := 0
	for _, row := range rows {
		id := strings.TrimSpace(row["donor_id"])
		if seen[id] {
			continue
		}
		seen[id] = true
		if yes, err := util.ParseYesNo(row["eligibility"]); err == nil && yes {
			n++
		}
	}
	return n, nil
}
