// Package models holds the row-level operations of the blood request, alert,
// inventory and donor tables.
package models

import (
	"strconv"
	"sync/atomic"
	"time"

	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/notification"
)

// SigAlertAccepted is emitted on util.Sig() with an *AlertAccepted sender
// once an alert has been marked ACCEPTED for a donor.
const SigAlertAccepted = "alert.accepted"

type AlertAccepted struct {
	AlertID    string
	DonorID    string
	BloodGroup string
	Component  string
}

// Caps bounds each notification list.
type Caps struct {
	Global   int
	LowStock int
	Donor    int
}

var DefaultCaps = Caps{Global: 20, LowStock: 50, Donor: 20}

type Repo struct {
	store     *flatstore.Store
	notes     *notification.Log
	threshold func(component string) int
	caps      Caps
	now       func() time.Time
	local     bool
	lastID    atomic.Int64
}

type Option func(*Repo)

// WithThreshold sets the low-stock threshold lookup. The default is 5 for
// every component.
func WithThreshold(fn func(component string) int) Option {
	return func(r *Repo) { r.threshold = fn }
}

func WithCaps(c Caps) Option { return func(r *Repo) { r.caps = c } }

// WithLocalAlerts makes CreateBloodRequest also open a Pending alert in the
// local alerts table, for processes that complete their own requests.
func WithLocalAlerts(on bool) Option { return func(r *Repo) { r.local = on } }

func WithClock(now func() time.Time) Option { return func(r *Repo) { r.now = now } }

func NewRepo(store *flatstore.Store, notes *notification.Log, opts ...Option) *Repo {
	r := &Repo{
		store:     store,
		notes:     notes,
		threshold: func(string) int { return 5 },
		caps:      DefaultCaps,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repo) Store() *flatstore.Store { return r.store }

func (r *Repo) Notes() *notification.Log { return r.notes }

func (r *Repo) Caps() Caps { return r.caps }

func (r *Repo) Threshold(component string) int { return r.threshold(component) }

// nextID returns a millisecond timestamp, bumped past the last one handed out
// so two requests in the same millisecond still get distinct keys.
func (r *Repo) nextID() string {
	ms := r.now().UnixMilli()
	for {
		last := r.lastID.Load()
		if ms <= last {
			ms = last + 1
		}
		if r.lastID.CompareAndSwap(last, ms) {
			return strconv.FormatInt(ms, 10)
		}
	}
}

func (r *Repo) stamp() (date, clock, full string) {
	t := r.now()
	return t.Format("2006-01-02"), t.Format("15:04:05"), t.Format(notification.TimestampLayout)
}
