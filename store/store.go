// Package store persists a journal of transfer outcomes in a bbolt
// database. The journal is an optional audit trail: writes that fail are
// reported to the caller but never stop a run.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	transfersBucket = []byte("transfers")
	runsBucket      = []byte("runs")
)

// TransferRecord is one attempted file transfer.
type TransferRecord struct {
	Route string `json:"route"`
	Name  string `json:"name"`
	Bytes int64  `json:"bytes"`
	OK    bool   `json:"ok"`
	Unix  int64  `json:"unix"`
}

// RunRecord summarizes one process run.
type RunRecord struct {
	Started  int64  `json:"started"`
	Finished int64  `json:"finished"`
	Files    int    `json:"files"`
	Cause    string `json:"cause"`
}

// Journal is a bbolt-backed transfer log.
type Journal struct {
	db *bbolt.DB
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(transfersBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal buckets: %w", err)
	}
	return &Journal{db: db}, nil
}

// seqKey encodes a bucket sequence number so keys sort in insertion order.
func seqKey(n uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, n)
	return key
}

// RecordTransfer appends one transfer outcome.
func (j *Journal) RecordTransfer(route, name string, bytes int64, ok bool) error {
	rec := TransferRecord{
		Route: route,
		Name:  name,
		Bytes: bytes,
		OK:    ok,
		Unix:  time.Now().Unix(),
	}
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(transfersBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("journal sequence: %w", err)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal transfer record: %w", err)
		}
		return b.Put(seqKey(seq), data)
	})
}

// RecordRun appends the summary of a finished run.
func (j *Journal) RecordRun(rec RunRecord) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(runsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("journal sequence: %w", err)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal run record: %w", err)
		}
		return b.Put(seqKey(seq), data)
	})
}

// Transfers returns every transfer record in insertion order.
func (j *Journal) Transfers() ([]TransferRecord, error) {
	var out []TransferRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(transfersBucket).ForEach(func(_, v []byte) error {
			var rec TransferRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal transfer record: %w", err)
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Runs returns every run summary in insertion order.
func (j *Journal) Runs() ([]RunRecord, error) {
	var out []RunRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(_, v []byte) error {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal run record: %w", err)
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
