// Package poller imports records from a peer service's listing endpoint into
// the local flat store, skipping keys it has already seen.
package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"BloodLink/pkg/errors"
	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/logger"
	"BloodLink/pkg/metrics"
	"BloodLink/pkg/middleware"
	"BloodLink/pkg/notification"
	"BloodLink/pkg/scheduler"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Source describes the remote listing.
type Source struct {
	BaseURL string
	// Path is the full request path, API prefix included.
	Path string
	// ListField names the JSON array inside the response object.
	ListField string
	// Secret signs requests with middleware.Sign when set.
	Secret string
}

// Target describes where imported records go.
type Target struct {
	Table flatstore.Table
	// Map converts one remote record; a nil row is skipped.
	Map func(remote map[string]interface{}) flatstore.Row
	// Key identifies a record for dedup. Defaults to Table.KeyOf.
	Key func(row flatstore.Row) string
	// Notify builds the notification for an imported row; nil disables it.
	Notify func(row flatstore.Row) notification.Entry
	Scope  string
	Cap    int
}

type Option func(*Poller)

func WithNotes(l *notification.Log) Option { return func(p *Poller) { p.notes = l } }

func WithDeduper(d Deduper) Option { return func(p *Poller) { p.seen = d } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Poller) { p.metrics = m } }

func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.client.SetTimeout(d)
		}
	}
}

type Poller struct {
	name    string
	src     Source
	tgt     Target
	store   *flatstore.Store
	notes   *notification.Log
	seen    Deduper
	metrics *metrics.Metrics
	client  *resty.Client

	seedOnce sync.Once
	seedErr  error
}

// New builds a poller. The fetch has a 5s timeout and no retries: a failed
// cycle is simply tried again on the next tick.
func New(name string, src Source, tgt Target, store *flatstore.Store, opts ...Option) *Poller {
	if tgt.Key == nil {
		tgt.Key = tgt.Table.KeyOf
	}
	p := &Poller{
		name:  name,
		src:   src,
		tgt:   tgt,
		store: store,
		seen:  NewMemoryDeduper(),
		client: resty.New().
			SetBaseURL(strings.TrimRight(src.BaseURL, "/")).
			SetTimeout(5*time.Second).
			SetRetryCount(0).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Poller) Name() string { return p.name }

// Seed marks every key already in the local table as seen. It runs once; the
// first cycle calls it when nobody did.
func (p *Poller) Seed(ctx context.Context) error {
	p.seedOnce.Do(func() {
		rows, err := p.store.Load(p.tgt.Table)
		if err != nil {
			p.seedErr = err
			return
		}
		for _, row := range rows {
			if k := p.tgt.Key(row); strings.Trim(k, "|") != "" {
				p.seen.MarkSeen(ctx, k)
			}
		}
		logger.Info("poller seeded", zap.String("poller", p.name), zap.Int("keys", len(rows)))
	})
	return p.seedErr
}

// Run is one scheduled cycle. Errors are logged and never stop the loop.
func (p *Poller) Run(ctx context.Context) {
	n, err := p.Poll(ctx)
	if p.metrics != nil {
		p.metrics.RecordPollCycle(p.name, n, err)
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Warn("poll cycle failed", zap.String("poller", p.name), zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("poll cycle imported records", zap.String("poller", p.name), zap.Int("imported", n))
	}
}

// Start runs a cycle now and then every interval until s stops.
func (p *Poller) Start(s *scheduler.Scheduler, interval time.Duration) {
	s.EveryNow(interval, p)
}

// Poll fetches the listing once and imports unseen records. It returns how
// many rows were appended.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	if err := p.Seed(ctx); err != nil {
		return 0, err
	}
	records, err := p.fetch(ctx)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		row := p.tgt.Map(rec)
		if row == nil {
			continue
		}
		key := p.tgt.Key(row)
		if strings.Trim(key, "|") == "" || p.seen.Seen(ctx, key) {
			continue
		}
		if err := p.store.Append(p.tgt.Table, row); err != nil {
			if errors.IsConflict(err) {
				// written locally by another path
				p.seen.MarkSeen(ctx, key)
				continue
			}
			return imported, err
		}
		p.seen.MarkSeen(ctx, key)
		imported++

		if p.notes != nil && p.tgt.Notify != nil {
			if err := p.notes.Append(ctx, p.tgt.Scope, p.tgt.Notify(row), p.tgt.Cap); err != nil {
				logger.Warn("poller notification", zap.String("poller", p.name), zap.Error(err))
			}
		}
	}
	return imported, nil
}

func (p *Poller) fetch(ctx context.Context) ([]map[string]interface{}, error) {
	req := p.client.R().SetContext(ctx)
	if p.src.Secret != "" {
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		req.SetHeader(middleware.TimestampHeader, ts).
			SetHeader(middleware.SignatureHeader, middleware.Sign(p.src.Secret, "GET", p.src.Path, ts))
	}
	resp, err := req.Get(p.src.Path)
	if err != nil {
		return nil, errors.Sync(err, "fetch %s%s", p.src.BaseURL, p.src.Path)
	}
	if resp.IsError() {
		return nil, errors.Sync(nil, "fetch %s%s: status %d", p.src.BaseURL, p.src.Path, resp.StatusCode())
	}

	var body map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	if err := dec.Decode(&body); err != nil {
		return nil, errors.Sync(err, "decode %s response", p.src.Path)
	}
	raw, ok := body[p.src.ListField]
	if !ok {
		return nil, errors.Sync(nil, "%s response has no %q list", p.src.Path, p.src.ListField)
	}
	var records []map[string]interface{}
	dec = json.NewDecoder(bytes.NewReader(raw))
	// millisecond alert ids must survive as exact integers
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return nil, errors.Sync(err, "decode %s list", p.src.ListField)
	}
	return records, nil
}
