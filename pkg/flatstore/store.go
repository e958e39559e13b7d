// Package flatstore persists tables as delimited text files with a header row
// and small JSON documents, one file each, under a single data directory.
//
// Every mutation of a file runs under that file's lock, and whole-file rewrites
// go through a temp file and an atomic rename.
package flatstore

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"BloodLink/pkg/errors"
)

// ErrEmptyRewrite is returned by RewriteAll when asked to persist zero rows.
// Callers that matched nothing must report not-found instead of truncating.
var ErrEmptyRewrite = stderrors.New("flatstore: refusing to rewrite table with zero rows")

// Row is one record: field name to raw string value.
type Row map[string]string

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table describes one file-backed table.
type Table struct {
	Name string
	// Fields is the fixed header. Empty means the header is derived from the
	// first row written.
	Fields []string
	// Key lists the primary key fields. A table with Unique=false treats the
	// key as a lookup key only and keeps duplicates (append-only logs).
	Key    []string
	Unique bool
}

// KeyOf joins the key fields of r.
func (t Table) KeyOf(r Row) string {
	parts := make([]string, len(t.Key))
	for i, k := range t.Key {
		parts[i] = strings.TrimSpace(r[k])
	}
	return strings.Join(parts, "|")
}

func (t Table) file() string { return t.Name + ".csv" }

// WriteObserver receives one call per store write.
type WriteObserver interface {
	ObserveWrite(table, op string, d time.Duration, err error)
}

type Option func(*Store)

func WithObserver(o WriteObserver) Option {
	return func(s *Store) { s.observer = o }
}

// Store owns a data directory and one lock per file in it.
type Store struct {
	dir      string
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	observer WriteObserver
}

// New creates dir if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.StoreIO(err, "create data dir %s", dir)
	}
	s := &Store{dir: dir, locks: make(map[string]*sync.Mutex)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

// Path returns the file backing t.
func (s *Store) Path(t Table) string { return filepath.Join(s.dir, t.file()) }

func (s *Store) lock(file string) func() {
	s.mu.Lock()
	l, ok := s.locks[file]
	if !ok {
		l = &sync.Mutex{}
		s.locks[file] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Store) observe(table, op string, start time.Time, err error) {
	if s.observer != nil {
		s.observer.ObserveWrite(table, op, time.Since(start), err)
	}
}

// Load returns every row of t in file order. A missing or empty file yields
// an empty slice and no error.
func (s *Store) Load(t Table) ([]Row, error) {
	unlock := s.lock(t.file())
	defer unlock()
	rows, _, err := s.read(t)
	return rows, err
}

// Append adds row to t, creating the file and header if absent. On a unique
// table a row whose key already exists is rejected with a conflict error.
func (s *Store) Append(t Table, row Row) (err error) {
	start := time.Now()
	defer func() { s.observe(t.Name, "append", start, err) }()

	unlock := s.lock(t.file())
	defer unlock()

	rows, header, err := s.read(t)
	if err != nil {
		return err
	}
	if t.Unique && len(t.Key) > 0 {
		key := t.KeyOf(row)
		for _, r := range rows {
			if t.KeyOf(r) == key {
				return errors.Conflict("%s: key %q already exists", t.Name, key)
			}
		}
	}

	path := s.Path(t)
	if header == nil {
		header = headerFor(t, row)
		return s.writeAll(path, header, []Row{row})
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.StoreIO(err, "open %s", path)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(record(header, row)); err != nil {
		return errors.StoreIO(err, "append %s", path)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.StoreIO(err, "append %s", path)
	}
	return nil
}

// RewriteAll atomically replaces the content of t with rows. Unique tables are
// deduplicated on key: the first position is kept with the last value seen.
func (s *Store) RewriteAll(t Table, rows []Row) (err error) {
	start := time.Now()
	defer func() { s.observe(t.Name, "rewrite", start, err) }()

	unlock := s.lock(t.file())
	defer unlock()
	return s.rewrite(t, rows)
}

// Update runs fn over the current rows of t while holding the table lock and
// persists what it returns. A nil result means nothing changed and nothing is
// written; an error from fn aborts without touching the file.
func (s *Store) Update(t Table, fn func(rows []Row) ([]Row, error)) (err error) {
	start := time.Now()
	defer func() { s.observe(t.Name, "update", start, err) }()

	unlock := s.lock(t.file())
	defer unlock()

	rows, _, err := s.read(t)
	if err != nil {
		return err
	}
	out, err := fn(rows)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return s.rewrite(t, out)
}

func (s *Store) rewrite(t Table, rows []Row) error {
	if len(rows) == 0 {
		return ErrEmptyRewrite
	}
	if t.Unique && len(t.Key) > 0 {
		rows = dedup(t, rows)
	}
	header := headerFor(t, rows[0])
	return s.writeAll(s.Path(t), header, rows)
}

func dedup(t Table, rows []Row) []Row {
	index := make(map[string]int, len(rows))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		k := t.KeyOf(r)
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

func headerFor(t Table, first Row) []string {
	if len(t.Fields) > 0 {
		return t.Fields
	}
	header := make([]string, 0, len(first))
	for k := range first {
		header = append(header, k)
	}
	sort.Strings(header)
	return header
}

func record(header []string, r Row) []string {
	rec := make([]string, len(header))
	for i, h := range header {
		rec[i] = r[h]
	}
	return rec
}

// read parses the table file. header is nil when the file is missing or empty.
func (s *Store) read(t Table) ([]Row, []string, error) {
	path := s.Path(t)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Row{}, nil, nil
		}
		return nil, nil, errors.StoreIO(err, "read %s", path)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return []Row{}, nil, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, nil, errors.StoreIO(err, "read header of %s", path)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := []Row{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.StoreIO(err, "parse %s", path)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row := make(Row, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

func (s *Store) writeAll(path string, header []string, rows []Row) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return errors.StoreIO(err, "encode %s", path)
	}
	for _, r := range rows {
		if err := w.Write(record(header, r)); err != nil {
			return errors.StoreIO(err, "encode %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.StoreIO(err, "encode %s", path)
	}
	return WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// WriteFileAtomic writes data to a temp file next to path and renames it over
// path, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.StoreIO(err, "create temp for %s", path)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return errors.StoreIO(err, "write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return errors.StoreIO(err, "sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.StoreIO(err, "close %s", tmpName)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return errors.StoreIO(err, "chmod %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return errors.StoreIO(err, "rename %s", path)
	}
	return nil
}
