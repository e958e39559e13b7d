package flatstore

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"BloodLink/pkg/errors"
)

// DocumentPath returns the file backing the JSON document name.
func (s *Store) DocumentPath(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// LoadDocument decodes the JSON document name into a T. A missing or empty
// file yields the zero T.
func LoadDocument[T any](s *Store, name string) (T, error) {
	unlock := s.lock(name + ".json")
	defer unlock()
	return readDocument[T](s, name)
}

// UpdateDocument runs fn over the current document under its lock and writes
// the result back atomically. An error from fn leaves the file untouched.
func UpdateDocument[T any](s *Store, name string, fn func(doc T) (T, error)) (err error) {
	start := time.Now()
	defer func() { s.observe(name, "document", start, err) }()

	unlock := s.lock(name + ".json")
	defer unlock()

	doc, err := readDocument[T](s, name)
	if err != nil {
		return err
	}
	doc, err = fn(doc)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.StoreIO(err, "encode %s", name)
	}
	return WriteFileAtomic(s.DocumentPath(name), data, 0o644)
}

func readDocument[T any](s *Store, name string) (T, error) {
	var doc T
	path := s.DocumentPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, errors.StoreIO(err, "read %s", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, errors.StoreIO(err, "decode %s", path)
	}
	return doc, nil
}
