package models

import (
	"context"
	"math/rand"
	"strconv"
	"sync"

	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/notification"
)

var urgencies = []string{"Normal", "Urgent", "Critical"}

// Simulator appends synthetic pending alerts for demos.
type Simulator struct {
	repo   *Repo
	bankID string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulator(repo *Repo, bankID string, seed int64) *Simulator {
	return &Simulator{repo: repo, bankID: bankID, rnd: rand.New(rand.NewSource(seed))}
}

// Run adds one alert and its notification.
func (s *Simulator) Run(ctx context.Context) (flatstore.Row, error) {
	s.mu.Lock()
	group := BloodGroups[s.rnd.Intn(len(BloodGroups))]
	component := Components[s.rnd.Intn(len(Components))]
	units := 1 + s.rnd.Intn(5)
	urgency := urgencies[s.rnd.Intn(len(urgencies))]
	hospital := 10 + s.rnd.Intn(90)
	s.mu.Unlock()

	date, clock, _ := s.repo.stamp()
	row := flatstore.Row{
		"alert_id":      s.repo.nextID(),
		"hospital_id":   strconv.Itoa(hospital),
		"hospital_name": "Hospital " + strconv.Itoa(hospital),
		"bank_id":       s.bankID,
		"blood_group":   group,
		"component":     component,
		"units_needed":  strconv.Itoa(units),
		"urgency":       urgency,
		"status":        StatusPending,
		"date":          date,
		"time":          clock,
	}
	if err := s.repo.store.Append(AlertTable, row); err != nil {
		return nil, err
	}
	s.repo.notify(ctx, notification.ScopeGlobal, notification.Entry{
		Type:       notification.TypeBloodRequest,
		Message:    RequestMessage(row),
		AlertID:    row["alert_id"],
		BloodGroup: group,
		Component:  component,
	}, s.repo.caps.Global)
	return row, nil
}
