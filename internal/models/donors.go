package models

import (
	"crypto/subtle"
	"net/http"
	"sort"
	"strings"
	"time"

	"BloodLink/pkg/errors"
	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/geo"
)

// donation dates come in either layout
var donationLayouts = []string{"2006-01-02", "02-01-2006"}

const donationGap = 90 * 24 * time.Hour

// DonorView renders a donor row with numeric ids and coordinates.
func DonorView(row flatstore.Row) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		if k == "password" {
			continue
		}
		out[k] = v
	}
	out["donor_id"] = flatstore.IDValue(row, "donor_id")
	out["lat"] = flatstore.Float(row, "lat")
	out["lon"] = flatstore.Float(row, "lon")
	return out
}

func (r *Repo) ListDonors() ([]map[string]interface{}, error) {
	rows, err := r.store.Load(DonorTable)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		out = append(out, DonorView(row))
	}
	return out, nil
}

func (r *Repo) GetDonor(donorID string) (flatstore.Row, error) {
	donorID = strings.TrimSpace(donorID)
	rows, err := r.store.Load(DonorTable)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if sameID(row["donor_id"], donorID) {
			return row, nil
		}
	}
	return nil, errors.NotFound("Donor not found")
}

// DonorsNear returns donors within radiusKm of center, nearest first. Donors
// without coordinates are skipped. bloodGroup filters when set.
func (r *Repo) DonorsNear(center geo.Point, radiusKm float64, bloodGroup string) ([]map[string]interface{}, error) {
	if radiusKm <= 0 {
		return nil, errors.Validation("radius must be positive")
	}
	rows, err := r.store.Load(DonorTable)
	if err != nil {
		return nil, err
	}
	type hit struct {
		row  flatstore.Row
		dist float64
	}
	var hits []hit
	for _, row := range rows {
		if bloodGroup != "" && !equalFold(row["blood_group"], bloodGroup) {
			continue
		}
		lat, lon := flatstore.Float(row, "lat"), flatstore.Float(row, "lon")
		if lat == nil || lon == nil {
			continue
		}
		d := geo.DistanceKm(center, geo.Point{Lat: *lat, Lon: *lon})
		if d <= radiusKm {
			hits = append(hits, hit{row, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]map[string]interface{}, 0, len(hits))
	for _, h := range hits {
		v := DonorView(h.row)
		v["distance_km"] = h.dist
		out = append(out, v)
	}
	return out, nil
}

func (r *Repo) ListBloodBanks() ([]map[string]interface{}, error) {
	rows, err := r.store.Load(BloodBankTable)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]interface{}{
			"bank_id": flatstore.IDValue(row, "bank_id"),
			"name":    row["name"],
			"phone":   row["phone"],
			"address": row["address"],
			"lat":     flatstore.Float(row, "lat"),
			"lon":     flatstore.Float(row, "lon"),
		})
	}
	return out, nil
}

// DonorLogin checks email and password against the donor table. An unknown
// email is NotFound and a wrong password is 401.
func (r *Repo) DonorLogin(email, password string) (map[string]interface{}, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.Validation("email is required")
	}
	rows, err := r.store.Load(DonorTable)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if !strings.EqualFold(strings.TrimSpace(row["email"]), email) {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(row["password"]), []byte(password)) != 1 {
			return nil, errors.WithCode(http.StatusUnauthorized, "Invalid password")
		}
		return map[string]interface{}{
			"donor_id":            flatstore.IDValue(row, "donor_id"),
			"name":                row["name"],
			"blood_group":         row["blood_group"],
			"total_donations":     flatstore.IntOr(row, "total_donation", 0),
			"last_donation_date":  row["last_donated"],
			"first_donation_date": row["first_donation_date"],
			"dob":                 row["birthday"],
			"email":               row["email"],
			"phone":               row["phone"],
			"address":             row["address"],
			"total_units":         flatstore.IntOr(row, "total_units_donated", 0),
			"profile":             DonorView(row),
		}, nil
	}
	return nil, errors.NotFound("Email not found")
}

// Dashboard summarises a donor; the next eligible date is 90 days after the
// last donation.
func (r *Repo) Dashboard(donorID string) (map[string]interface{}, error) {
	row, err := r.GetDonor(donorID)
	if err != nil {
		return nil, err
	}
	var next interface{}
	if t, ok := parseDonationDate(row["last_donated"]); ok {
		next = t.Add(donationGap).Format("2006-01-02")
	}
	return map[string]interface{}{
		"blood_group":        nilIfEmpty(row["blood_group"]),
		"total_donations":    flatstore.IntOr(row, "total_donation", 0),
		"last_donation_date": nilIfEmpty(row["last_donated"]),
		"next_eligible_date": next,
	}, nil
}

func (r *Repo) Profile(donorID string) (map[string]interface{}, error) {
	row, err := r.GetDonor(donorID)
	if err != nil {
		return nil, err
	}
	var years interface{}
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(row["first_donation_date"])); err == nil {
		years = r.now().Year() - t.Year()
	}
	return map[string]interface{}{
		"username":        nilIfEmpty(row["name"]),
		"blood_group":     nilIfEmpty(row["blood_group"]),
		"total_donations": flatstore.IntOr(row, "total_donation", 0),
		"years_active":    years,
		"dob":             nilIfEmpty(row["birthday"]),
		"email":           nilIfEmpty(row["email"]),
		"phone":           nilIfEmpty(row["phone"]),
		"address":         nilIfEmpty(row["address"]),
	}, nil
}

type Donation struct {
	Date       string `json:"date"`
	Location   string `json:"location"`
	BloodGroup string `json:"blood_group"`
	Units      int    `json:"units"`
	Status     string `json:"status"`
}

// DonationHistory spreads total_donation donations evenly between the first
// and last donation dates. Only the donor row is stored, so the individual
// dates are reconstructed.
func (r *Repo) DonationHistory(donorID string) (map[string]interface{}, error) {
	row, err := r.GetDonor(donorID)
	if err != nil {
		return nil, err
	}
	total := flatstore.IntOr(row, "total_donation", 0)
	units := flatstore.IntOr(row, "total_units_donated", 0)
	donations := []Donation{}

	first, okFirst := parseISODate(row["first_donation_date"])
	last, okLast := parseISODate(row["last_donated"])
	if okFirst && okLast && total > 0 {
		var step time.Duration
		if total > 1 {
			step = last.Sub(first) / time.Duration(total-1)
		}
		for i := 0; i < total; i++ {
			donations = append(donations, Donation{
				Date:       first.Add(time.Duration(i) * step).Format("02-01-2006"),
				Location:   "City General Hospital",
				BloodGroup: row["blood_group"],
				Units:      units / total,
				Status:     StatusCompleted,
			})
		}
	}
	return map[string]interface{}{
		"total_donations": total,
		"total_units":     units,
		"donations":       donations,
	}, nil
}

func parseDonationDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range donationLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseISODate(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	return t, err == nil
}

func sameID(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return true
	}
	ra, rb := flatstore.Row{"id": a}, flatstore.Row{"id": b}
	na, okA := flatstore.Int(ra, "id")
	nb, okB := flatstore.Int(rb, "id")
	return okA && okB && na == nb
}

func nilIfEmpty(s string) interface{} {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}
