package fim

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// databaseInitialCapacity pre-sizes the backing map, mirroring the original
// implementation's 2,048-bucket hash table.
const databaseInitialCapacity = 2048

// Record is the per-path state stored in the Integrity Database. The
// fixed-width flags tag and the variable-length fingerprint line are kept
// as a pair rather than packed into one buffer.
type Record struct {
	// FlagsTag describes which checks are active for this path. It is fixed
	// at insertion time and never changes afterward: a path's monitored
	// fields can't drift mid-lifetime without a new record.
	FlagsTag FlagsTag
	// Fingerprint is the most recently observed canonical fingerprint line.
	Fingerprint string
	// scanned is true iff the current scan cycle has already touched this
	// record.
	scanned bool
}

// ErrPathAlreadyExists is returned by Database.Insert when a path is already
// present in the database.
var ErrPathAlreadyExists = errors.New("path already exists in database")

// ErrPathNotFound is returned by Database operations that require an
// existing record when no record is present for the given path.
var ErrPathNotFound = errors.New("path not found in database")

// Database is the single-writer mapping from path to Record, the in-memory
// integrity baseline built up across scan cycles. It is not safe for
// concurrent use; it is owned exclusively by the scheduler's control task,
// and Len and TotalSize read the map without locking like every other
// method. Concurrent observers read the entry count from Scheduler.Status.
type Database struct {
	records map[string]*Record
}

// NewDatabase creates an empty, pre-sized integrity database.
func NewDatabase() *Database {
	return &Database{
		records: make(map[string]*Record, databaseInitialCapacity),
	}
}

// Lookup returns the record stored for path, if any.
func (d *Database) Lookup(path string) (*Record, bool) {
	record, ok := d.records[path]
	return record, ok
}

// Insert adds a new record for path. It fails if a record is already
// present.
func (d *Database) Insert(path string, record *Record) error {
	if _, exists := d.records[path]; exists {
		return errors.Wrapf(ErrPathAlreadyExists, "path: %s", path)
	}
	d.records[path] = record
	return nil
}

// Update replaces the fingerprint of an existing record, preserving its
// flags tag, and marks it scanned.
func (d *Database) Update(path string, fingerprint string) error {
	record, ok := d.records[path]
	if !ok {
		return errors.Wrapf(ErrPathNotFound, "path: %s", path)
	}
	record.Fingerprint = fingerprint
	record.scanned = true
	return nil
}

// MarkScanned marks an existing record as touched during the current scan
// cycle, without altering its fingerprint.
func (d *Database) MarkScanned(path string) error {
	record, ok := d.records[path]
	if !ok {
		return errors.Wrapf(ErrPathNotFound, "path: %s", path)
	}
	record.scanned = true
	return nil
}

// Remove deletes a record outright, independent of the sweep protocol. It
// is used when a path disappears mid-cycle (the stat fails before a new
// fingerprint can be computed): the record is removed immediately rather
// than left flagged for the next sweep.
func (d *Database) Remove(path string) {
	delete(d.records, path)
}

// ResetScannedFlags clears the scanned flag on every surviving record,
// ready for the next scan cycle. It is the first of the two explicit
// passes that stand in for syscheckd's generic OSHash_It callback walk.
func (d *Database) ResetScannedFlags() {
	for _, record := range d.records {
		record.scanned = false
	}
}

// SweepDeleted is the second of the two explicit sweep operations. It
// iterates every record, invoking emit(path) and removing the entry for
// every record whose scanned flag is still false (i.e. was not touched
// during the cycle that just completed); all other records are left
// intact, ready for ResetScannedFlags on the next cycle.
func (d *Database) SweepDeleted(emit func(path string)) {
	for path, record := range d.records {
		if !record.scanned {
			emit(path)
			delete(d.records, path)
		}
	}
}

// Len returns the current number of records tracked by the database.
func (d *Database) Len() int {
	return len(d.records)
}

// TotalSize sums the size field recorded in every tracked fingerprint. It
// is used only for reporting, not for integrity checks, so a record whose
// size field can't be parsed is silently skipped rather than treated as an
// error. A path with the size check disabled has a size field of 0 and
// adds nothing to the total.
func (d *Database) TotalSize() int64 {
	var total int64
	for _, record := range d.records {
		field := record.Fingerprint
		if idx := strings.IndexByte(field, ':'); idx >= 0 {
			field = field[:idx]
		}
		if size, err := strconv.ParseInt(field, 10, 64); err == nil {
			total += size
		}
	}
	return total
}
