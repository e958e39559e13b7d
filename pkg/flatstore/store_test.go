package flatstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"BloodLink/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alerts = Table{
	Name:   "alerts",
	Fields: []string{"alert_id", "blood_group", "status"},
	Key:    []string{"alert_id"},
	Unique: true,
}

var responses = Table{
	Name:   "bb_responses",
	Fields: []string{"bank_id", "hospital_id", "alert_id", "status"},
	Key:    []string{"bank_id", "hospital_id"},
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestLoadMissingAndEmpty(t *testing.T) {
	s := newStore(t)

	rows, err := s.Load(alerts)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, os.WriteFile(s.Path(alerts), []byte("\n"), 0o644))
	rows, err = s.Load(alerts)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAppendCreatesHeaderAndDropsUnknownFields(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Append(alerts, Row{"alert_id": "1", "status": "Pending", "extra": "x"}))
	require.NoError(t, s.Append(alerts, Row{"alert_id": "2", "blood_group": "O+", "status": "Pending"}))

	data, err := os.ReadFile(s.Path(alerts))
	require.NoError(t, err)
	assert.Equal(t, "alert_id,blood_group,status\n1,,Pending\n2,O+,Pending\n", string(data))

	rows, err := s.Load(alerts)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0]["blood_group"])
	_, ok := rows[0]["extra"]
	assert.False(t, ok)
}

func TestAppendRejectsDuplicateKey(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Append(alerts, Row{"alert_id": "1", "status": "Pending"}))

	err := s.Append(alerts, Row{"alert_id": "1", "status": "Resolved"})
	assert.True(t, errors.IsConflict(err))

	rows, _ := s.Load(alerts)
	assert.Len(t, rows, 1)
	assert.Equal(t, "Pending", rows[0]["status"])
}

func TestAppendLogKeepsDuplicates(t *testing.T) {
	s := newStore(t)
	r := Row{"bank_id": "21", "hospital_id": "99", "alert_id": "1", "status": "SENT"}
	require.NoError(t, s.Append(responses, r))
	require.NoError(t, s.Append(responses, r))

	rows, _ := s.Load(responses)
	assert.Len(t, rows, 2)
}

func TestRewriteAllDedupsFirstPositionLastValue(t *testing.T) {
	s := newStore(t)
	err := s.RewriteAll(alerts, []Row{
		{"alert_id": "1", "status": "Pending"},
		{"alert_id": "2", "status": "Pending"},
		{"alert_id": "1", "status": "Resolved"},
	})
	require.NoError(t, err)

	rows, _ := s.Load(alerts)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0]["alert_id"])
	assert.Equal(t, "Resolved", rows[0]["status"])
	assert.Equal(t, "2", rows[1]["alert_id"])
}

func TestRewriteAllRefusesEmpty(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Append(alerts, Row{"alert_id": "1", "status": "Pending"}))

	err := s.RewriteAll(alerts, nil)
	assert.ErrorIs(t, err, ErrEmptyRewrite)

	rows, _ := s.Load(alerts)
	assert.Len(t, rows, 1)
}

func TestSchemalessHeaderIsSorted(t *testing.T) {
	s := newStore(t)
	loose := Table{Name: "inventory"}
	require.NoError(t, s.RewriteAll(loose, []Row{{"units_available": "4", "blood_group": "A+"}}))

	data, _ := os.ReadFile(s.Path(loose))
	assert.Equal(t, "blood_group,units_available\nA+,4\n", string(data))
}

func TestUpdateNilResultWritesNothing(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Append(alerts, Row{"alert_id": "1", "status": "Pending"}))
	before, _ := os.Stat(s.Path(alerts))

	err := s.Update(alerts, func(rows []Row) ([]Row, error) { return nil, nil })
	require.NoError(t, err)

	after, _ := os.Stat(s.Path(alerts))
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestUpdateErrorAborts(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Append(alerts, Row{"alert_id": "1", "status": "Pending"}))

	err := s.Update(alerts, func(rows []Row) ([]Row, error) {
		rows[0]["status"] = "Resolved"
		return nil, errors.NotFound("nope")
	})
	assert.True(t, errors.IsNotFound(err))

	rows, _ := s.Load(alerts)
	assert.Equal(t, "Pending", rows[0]["status"])
}

func TestConcurrentUpdatesLoseNothing(t *testing.T) {
	s := newStore(t)
	counter := Table{Name: "counter", Fields: []string{"id", "n"}, Key: []string{"id"}, Unique: true}
	require.NoError(t, s.Append(counter, Row{"id": "x", "n": "0"}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(counter, func(rows []Row) ([]Row, error) {
				rows[0]["n"] = fmt.Sprint(IntOr(rows[0], "n", 0) + 1)
				return rows, nil
			})
		}()
	}
	wg.Wait()

	rows, _ := s.Load(counter)
	assert.Equal(t, "20", rows[0]["n"])
}

func TestWriteFileAtomicLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, WriteFileAtomic(path, []byte("[]"), 0o644))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

type recorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *recorder) ObserveWrite(table, op string, d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, table+":"+op)
}

func TestObserverSeesWrites(t *testing.T) {
	rec := &recorder{}
	s, err := New(t.TempDir(), WithObserver(rec))
	require.NoError(t, err)

	_ = s.Append(alerts, Row{"alert_id": "1"})
	_ = s.RewriteAll(alerts, []Row{{"alert_id": "1"}})
	assert.Equal(t, []string{"alerts:append", "alerts:rewrite"}, rec.ops)
}

func TestDocumentRoundTrip(t *testing.T) {
	s := newStore(t)

	doc, err := LoadDocument[[]string](s, "notifications")
	require.NoError(t, err)
	assert.Empty(t, doc)

	err = UpdateDocument(s, "notifications", func(d []string) ([]string, error) {
		return append(d, "hello"), nil
	})
	require.NoError(t, err)

	doc, err = LoadDocument[[]string](s, "notifications")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, doc)
}

func TestCoercion(t *testing.T) {
	r := Row{"lat": "12.97", "lon": "", "bad": "north", "id": "0042", "zero": "0", "name": "D-7"}

	require.NotNil(t, Float(r, "lat"))
	assert.InDelta(t, 12.97, *Float(r, "lat"), 1e-9)
	assert.Nil(t, Float(r, "lon"))
	assert.Nil(t, Float(r, "bad"))

	n, ok := Int(r, "id")
	assert.True(t, ok)
	assert.Equal(t, 42, n)
	n, ok = Int(r, "zero")
	assert.True(t, ok)
	assert.Equal(t, 0, n)

	assert.Equal(t, 42, IDValue(r, "id"))
	assert.Equal(t, "D-7", IDValue(r, "name"))
}
