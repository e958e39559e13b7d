// Package notification keeps bounded, newest-first notification lists as JSON
// documents in the flat store and fans new entries out to live subscribers.
package notification

import (
	"context"
	"strings"
	"time"

	"BloodLink/pkg/errors"
	"BloodLink/pkg/flatstore"
)

// Scopes, one JSON document each.
const (
	ScopeGlobal   = "notifications"
	ScopeLowStock = "low_stock_alerts"
	ScopeDonor    = "donor_notifications"
)

// Entry types written by the services.
const (
	TypeBloodRequest = "Blood Request"
	TypeLowStock     = "Low Stock Alert"
	TypeAlertUpdate  = "Alert Update"
	TypeDonorAlert   = "Donor Alert"
)

const TimestampLayout = "2006-01-02 15:04:05"

type Entry struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	AlertID    string `json:"alert_id,omitempty"`
	BloodGroup string `json:"blood_group,omitempty"`
	Component  string `json:"component,omitempty"`
	DonorID    string `json:"donor_id,omitempty"`
}

// Publisher receives every entry after it has been persisted.
type Publisher interface {
	Publish(scope string, e Entry)
}

type Option func(*Log)

func WithPublisher(p Publisher) Option { return func(l *Log) { l.pub = p } }

func WithClock(now func() time.Time) Option { return func(l *Log) { l.now = now } }

// Log reads and appends notification lists.
type Log struct {
	store *flatstore.Store
	pub   Publisher
	now   func() time.Time
}

func NewLog(store *flatstore.Store, opts ...Option) *Log {
	l := &Log{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append inserts e at the head of scope and truncates the list to limit.
func (l *Log) Append(ctx context.Context, scope string, e Entry, limit int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e = l.stamp(e)
	err := flatstore.UpdateDocument(l.store, scope, func(list []Entry) ([]Entry, error) {
		return prepend(list, e, limit), nil
	})
	if err != nil {
		return errors.Wrapf(err, "append to %s", scope)
	}
	l.publish(scope, e)
	return nil
}

// AppendFor is Append on the per-donor list keyed by donorID inside scope.
func (l *Log) AppendFor(ctx context.Context, scope, donorID string, e Entry, limit int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	donorID = strings.TrimSpace(donorID)
	if donorID == "" {
		return errors.Validation("donor id is required")
	}
	e = l.stamp(e)
	if e.DonorID == "" {
		e.DonorID = donorID
	}
	err := flatstore.UpdateDocument(l.store, scope, func(doc map[string][]Entry) (map[string][]Entry, error) {
		if doc == nil {
			doc = make(map[string][]Entry)
		}
		doc[donorID] = prepend(doc[donorID], e, limit)
		return doc, nil
	})
	if err != nil {
		return errors.Wrapf(err, "append to %s[%s]", scope, donorID)
	}
	l.publish(scope, e)
	return nil
}

// List returns scope newest first; a missing document is an empty list.
func (l *Log) List(scope string) ([]Entry, error) {
	list, err := flatstore.LoadDocument[[]Entry](l.store, scope)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Entry{}
	}
	return list, nil
}

func (l *Log) ListFor(scope, donorID string) ([]Entry, error) {
	doc, err := flatstore.LoadDocument[map[string][]Entry](l.store, scope)
	if err != nil {
		return nil, err
	}
	list := doc[strings.TrimSpace(donorID)]
	if list == nil {
		list = []Entry{}
	}
	return list, nil
}

func (l *Log) stamp(e Entry) Entry {
	if e.Timestamp == "" {
		e.Timestamp = l.now().Format(TimestampLayout)
	}
	return e
}

func (l *Log) publish(scope string, e Entry) {
	if l.pub != nil {
		l.pub.Publish(scope, e)
	}
}

// prepend puts e first and drops the tail beyond limit. limit <= 0 keeps all.
func prepend(list []Entry, e Entry, limit int) []Entry {
	out := make([]Entry, 0, len(list)+1)
	out = append(out, e)
	out = append(out, list...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
