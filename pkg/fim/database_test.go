package fim

import (
	"testing"
)

func TestDatabaseInsertAndLookup(t *testing.T) {
	db := NewDatabase()
	record := &Record{FlagsTag: NewFlagsTag(OptionMD5), Fingerprint: "1:2:3:4:abc:xxx"}

	if err := db.Insert("/etc/hosts", record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := db.Lookup("/etc/hosts")
	if !ok {
		t.Fatal("expected record to be present")
	}
	if got.Fingerprint != record.Fingerprint {
		t.Errorf("unexpected fingerprint: %s", got.Fingerprint)
	}

	if err := db.Insert("/etc/hosts", record); err == nil {
		t.Fatal("expected error inserting duplicate path")
	}
}

func TestDatabaseUpdatePreservesFlagsTag(t *testing.T) {
	db := NewDatabase()
	tag := NewFlagsTag(OptionMD5 | OptionSHA1)
	if err := db.Insert("/etc/hosts", &Record{FlagsTag: tag, Fingerprint: "old"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := db.Update("/etc/hosts", "new"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record, ok := db.Lookup("/etc/hosts")
	if !ok {
		t.Fatal("expected record to be present")
	}
	if record.Fingerprint != "new" {
		t.Errorf("expected updated fingerprint, got %s", record.Fingerprint)
	}
	if record.FlagsTag != tag {
		t.Error("expected flags tag to be preserved across update")
	}
}

func TestDatabaseUpdateMissingPath(t *testing.T) {
	db := NewDatabase()
	if err := db.Update("/missing", "x"); err == nil {
		t.Fatal("expected error updating a path that was never inserted")
	}
}

func TestDatabaseSweepDeletedEmitsUnscannedOnly(t *testing.T) {
	db := NewDatabase()
	if err := db.Insert("/a", &Record{Fingerprint: "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.Insert("/b", &Record{Fingerprint: "2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	db.ResetScannedFlags()
	if err := db.MarkScanned("/a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var emitted []string
	db.SweepDeleted(func(path string) {
		emitted = append(emitted, path)
	})

	if len(emitted) != 1 || emitted[0] != "/b" {
		t.Errorf("expected only /b to be swept, got %v", emitted)
	}
	if db.Len() != 1 {
		t.Errorf("expected one surviving record, got %d", db.Len())
	}
	if _, ok := db.Lookup("/b"); ok {
		t.Error("expected swept record to be removed")
	}
}

func TestDatabaseRemoveIsImmediate(t *testing.T) {
	db := NewDatabase()
	if err := db.Insert("/a", &Record{Fingerprint: "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db.Remove("/a")
	if _, ok := db.Lookup("/a"); ok {
		t.Error("expected record to be gone immediately after Remove")
	}
}

func TestDatabaseTotalSizeSumsParsableSizeFields(t *testing.T) {
	db := NewDatabase()
	if err := db.Insert("/a", &Record{Fingerprint: "100:2:3:4:abc:xxx"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.Insert("/b", &Record{Fingerprint: "50:2:3:4:abc:xxx"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.Insert("/c", &Record{Fingerprint: "ddd:ddd"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := db.TotalSize(); got != 150 {
		t.Errorf("expected total size 150, got %d", got)
	}
}
