package poller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"BloodLink/internal/models"
	"BloodLink/pkg/cache"
	"BloodLink/pkg/errors"
	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/middleware"
	"BloodLink/pkg/notification"
	"BloodLink/pkg/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listing = `{"status":"success","blood_requests":[
 {"alert_id":1723456789012,"hospital_id":"99","bank_id":"21","blood_group":"O+","component":"Plasma","units_needed":3,"urgency":"Urgent","status":"SENT"},
 {"alert_id":"1723456789013","hospital_id":"99","bank_id":"21","blood_group":"A-","component":"Platelets","units_needed":"1","status":"pending"}
]}`

func newRepo(t *testing.T) *models.Repo {
	t.Helper()
	store, err := flatstore.New(t.TempDir())
	require.NoError(t, err)
	return models.NewRepo(store, notification.NewLog(store))
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func TestRequestPollerIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/blood-requests", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(listing))
	}))
	defer srv.Close()

	repo := newRepo(t)
	p := NewRequestPoller(srv.URL, "/api", "", repo)

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	alerts, err := repo.ListAlerts("")
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "1723456789012", alerts[0]["alert_id"])
	assert.Equal(t, models.StatusPending, alerts[0]["status"])
	assert.Equal(t, models.StatusPending, alerts[1]["status"])

	tableBefore := readFile(t, repo.Store().Path(models.AlertTable))
	notesBefore := readFile(t, repo.Store().DocumentPath(notification.ScopeGlobal))

	n, err = p.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, tableBefore, readFile(t, repo.Store().Path(models.AlertTable)))
	assert.Equal(t, notesBefore, readFile(t, repo.Store().DocumentPath(notification.ScopeGlobal)))
}

func TestPollerSeedsFromLocalTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listing))
	}))
	defer srv.Close()

	repo := newRepo(t)
	require.NoError(t, repo.Store().Append(models.AlertTable, flatstore.Row{
		"alert_id": "1723456789012", "status": models.StatusResolved,
	}))

	n, err := NewRequestPoller(srv.URL, "/api", "", repo).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	alerts, _ := repo.ListAlerts("")
	require.Len(t, alerts, 2)
	assert.Equal(t, models.StatusResolved, alerts[0]["status"])
}

func TestPollerSurvivesFailedCycle(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			_, _ = w.Write([]byte(`not json`))
		default:
			_, _ = w.Write([]byte(listing))
		}
	}))
	defer srv.Close()

	repo := newRepo(t)
	p := NewRequestPoller(srv.URL, "/api", "", repo)

	_, err := p.Poll(context.Background())
	assert.Equal(t, errors.CodeSync, errors.GetCode(err))
	_, err = p.Poll(context.Background())
	assert.Equal(t, errors.CodeSync, errors.GetCode(err))

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPollerSignsRequests(t *testing.T) {
	var verified atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts := r.Header.Get(middleware.TimestampHeader)
		verified.Store(r.Header.Get(middleware.SignatureHeader) == middleware.Sign("s3cret", "GET", r.URL.Path, ts))
		_, _ = w.Write([]byte(`{"blood_requests":[]}`))
	}))
	defer srv.Close()

	_, err := NewRequestPoller(srv.URL, "/api", "s3cret", newRepo(t)).Poll(context.Background())
	require.NoError(t, err)
	assert.True(t, verified.Load())
}

func TestResponsePollerWithCacheDeduper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/responses", r.URL.Path)
		_, _ = w.Write([]byte(`{"bank_responses":[
			{"bank_id":"21","hospital_id":"99","alert_id":"5","status":"ACCEPTED","response_time":"2025-08-12 10:15:33"},
			{"bank_id":"21","hospital_id":"99","alert_id":"5","status":"SENT","response_time":"2025-08-12 10:00:00"}
		]}`))
	}))
	defer srv.Close()

	repo := newRepo(t)
	require.NoError(t, repo.Store().Append(models.BankResponseTable, flatstore.Row{
		"bank_id": "21", "hospital_id": "99", "alert_id": "5", "status": models.StatusSent,
	}))
	c := cache.NewGoCache(cache.LocalConfig{CleanupInterval: time.Minute})
	p := NewResponsePoller(srv.URL, "/api", "", repo, WithDeduper(NewCacheDeduper(c, "responses")))

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, c.Exists(context.Background(), "poller:responses:5|ACCEPTED"))

	rows, _ := repo.ListBankResponses()
	assert.Len(t, rows, 2)
}

func TestPollerStopsWithScheduler(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"blood_requests":[]}`))
	}))
	defer srv.Close()

	s := scheduler.New()
	NewRequestPoller(srv.URL, "/api", "", newRepo(t)).Start(s, 10*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}
