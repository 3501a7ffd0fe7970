// Package journal archives run reports in a local bbolt database so a
// destructive run always leaves a durable record of what it did.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/skyfell/reaper/report"
)

var runsBucket = []byte("runs")

// Journal is an append-only archive of run reports.
type Journal struct {
	db *bolt.DB
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs bucket: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends a report, keyed by its start time so keys sort
// chronologically.
func (j *Journal) Record(r *report.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	key := []byte(r.StartedAt.UTC().Format(time.RFC3339Nano))
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put(key, data)
	})
}

// Last returns the most recent report, or nil when the journal is empty.
func (j *Journal) Last() (*report.Report, error) {
	var r *report.Report
	err := j.db.View(func(tx *bolt.Tx) error {
		_, data := tx.Bucket(runsBucket).Cursor().Last()
		if data == nil {
			return nil
		}
		r = &report.Report{}
		return json.Unmarshal(data, r)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read last report: %w", err)
	}
	return r, nil
}

// List returns up to limit reports, newest first.
func (j *Journal) List(limit int) ([]*report.Report, error) {
	var reports []*report.Report
	err := j.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(runsBucket).Cursor()
		for key, data := cursor.Last(); key != nil && len(reports) < limit; key, data = cursor.Prev() {
			r := &report.Report{}
			if err := json.Unmarshal(data, r); err != nil {
				return err
			}
			reports = append(reports, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}
