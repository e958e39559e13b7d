package models

import (
	"strconv"

	"BloodLink/pkg/flatstore"
)

var (
	BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
	Components  = []string{"Whole Blood", "Plasma", "Platelets", "Red Blood Cells"}
)

const seedUnits = 20

// Seed fills inventory, blood banks and credentials when those tables are
// empty and returns how many rows it wrote per table. Tables that already
// have rows are left alone.
func (r *Repo) Seed(hospitalID, bankID string) (map[string]int, error) {
	written := make(map[string]int)

	var inventory []flatstore.Row
	for gi, g := range BloodGroups {
		for ci, c := range Components {
			inventory = append(inventory, flatstore.Row{
				"blood_group":     g,
				"component":       c,
				"blood_group_id":  strconv.Itoa(gi + 1),
				"component_id":    strconv.Itoa(ci + 1),
				"units_available": strconv.Itoa(seedUnits),
			})
		}
	}
	banks := []flatstore.Row{
		{"bank_id": bankID, "name": "Krithi's Blood Bank", "phone": "044-24567890", "lat": "13.0827", "lon": "80.2707", "address": "Anna Salai, Chennai"},
		{"bank_id": "22", "name": "City Central Blood Bank", "phone": "044-28451234", "lat": "13.0674", "lon": "80.2376", "address": "Nungambakkam, Chennai"},
		{"bank_id": "23", "name": "Lifeline Blood Centre", "phone": "044-26161616", "lat": "13.0012", "lon": "80.2565", "address": "Adyar, Chennai"},
	}
	credentials := []flatstore.Row{
		{"username": "hospital", "password": "hospital123", "role": "hospital", "entity_id": hospitalID},
		{"username": "bank", "password": "bank123", "role": "bank", "entity_id": bankID},
	}

	for _, seed := range []struct {
		table flatstore.Table
		rows  []flatstore.Row
	}{
		{InventoryTable, inventory},
		{BloodBankTable, banks},
		{CredentialTable, credentials},
	} {
		err := r.store.Update(seed.table, func(rows []flatstore.Row) ([]flatstore.Row, error) {
			if len(rows) > 0 {
				return nil, nil
			}
			written[seed.table.Name] = len(seed.rows)
			return seed.rows, nil
		})
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
