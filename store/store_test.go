package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordTransfer(t *testing.T) {
	j := openTestJournal(t)

	if err := j.RecordTransfer("ftp://u@a:21/x -> ftp://u@b:21/y", "report.csv", 1024, true); err != nil {
		t.Fatalf("Failed to record transfer: %v", err)
	}
	if err := j.RecordTransfer("ftp://u@a:21/x -> ftp://u@b:21/y", "broken.csv", 0, false); err != nil {
		t.Fatalf("Failed to record transfer: %v", err)
	}

	recs, err := j.Transfers()
	if err != nil {
		t.Fatalf("Failed to read transfers: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}

	if recs[0].Name != "report.csv" || !recs[0].OK || recs[0].Bytes != 1024 {
		t.Errorf("Unexpected first record: %+v", recs[0])
	}
	if recs[1].Name != "broken.csv" || recs[1].OK {
		t.Errorf("Unexpected second record: %+v", recs[1])
	}
	if recs[0].Unix == 0 {
		t.Error("Record timestamp not set")
	}
}

func TestJournal_InsertionOrderSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	names := []string{"a.csv", "b.csv", "c.csv"}
	for _, name := range names {
		if err := j.RecordTransfer("route", name, 1, true); err != nil {
			t.Fatalf("Failed to record %s: %v", name, err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Failed to close journal: %v", err)
	}

	j, err = Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen journal: %v", err)
	}
	defer j.Close()

	recs, err := j.Transfers()
	if err != nil {
		t.Fatalf("Failed to read transfers: %v", err)
	}
	if len(recs) != len(names) {
		t.Fatalf("Expected %d records, got %d", len(names), len(recs))
	}
	for i, name := range names {
		if recs[i].Name != name {
			t.Errorf("Record %d is %s, expected %s", i, recs[i].Name, name)
		}
	}
}

func TestJournal_RecordRun(t *testing.T) {
	j := openTestJournal(t)

	started := time.Now().Add(-time.Minute).Unix()
	rec := RunRecord{Started: started, Finished: time.Now().Unix(), Files: 7, Cause: "none"}
	if err := j.RecordRun(rec); err != nil {
		t.Fatalf("Failed to record run: %v", err)
	}

	runs, err := j.Runs()
	if err != nil {
		t.Fatalf("Failed to read runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	if runs[0] != rec {
		t.Errorf("Run record mismatch: %+v vs %+v", runs[0], rec)
	}
}

func TestJournal_OpenBadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "journal.db"))
	if err == nil {
		t.Fatal("Expected error for unwritable path")
	}
}
