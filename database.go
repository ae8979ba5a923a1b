package solentbase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/RogerMarsh/solentware-base-sub000/archive"
	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/store"
)

// nameSep joins a file name with the suffix naming each of its tables.
// File and field names must not contain it.
const nameSep = "__"

func existTableName(file string) string { return file + nameSep + "exist" }

func controlTableName(file string) string { return file + nameSep + "control" }

func rowsTableName(file, field string) string { return file + nameSep + field }

func listTableName(file, field string) string { return rowsTableName(file, field) + "_list" }

func bitmapTableName(file, field string) string { return rowsTableName(file, field) + "_bitmap" }

// Database is a segmented inverted-index engine over one key-value store.
// Records live in per-file primary tables keyed by record number; each
// declared field keeps an inverted index of value to record-number segments
// alongside.
//
// A Database is single threaded: one transaction at a time, operations run
// to completion on the caller's goroutine, and callers serialise access per
// instance.
type Database struct {
	st        store.Store
	geo       model.Geometry
	id        string
	specs     []fileSpec
	cacheSize int
	log       *Logger
	metrics   MetricsCollector

	txn      store.Txn
	writable bool
	files    map[string]*File
}

// Open binds a database to its store, validates the configuration and
// creates the tables for every declared file so later read-only
// transactions can see them.
//
//	st := memstore.New()
//	db, err := solentbase.Open(st,
//	    solentbase.WithFile("games", "white", "black", "event"),
//	)
func Open(st store.Store, optFns ...Option) (*Database, error) {
	if st == nil {
		return nil, &model.ConfigurationError{Field: "Store", Value: nil, Reason: "a database needs a store"}
	}
	opts := applyOptions(optFns)
	if err := opts.geometry.Validate(); err != nil {
		return nil, err
	}
	if err := checkSpecs(opts.files); err != nil {
		return nil, err
	}

	db := &Database{
		st:        st,
		geo:       opts.geometry,
		id:        uuid.NewString(),
		specs:     opts.files,
		cacheSize: opts.cacheSize,
		log:       opts.logger,
		metrics:   opts.metrics,
	}
	if err := db.ensureTables(); err != nil {
		return nil, err
	}
	db.log.Debug("database opened",
		"id", db.id,
		"files", len(db.specs),
		"segment_size", db.geo.SegmentSize,
	)
	return db, nil
}

func checkSpecs(specs []fileSpec) error {
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		switch {
		case spec.name == "":
			return &model.ConfigurationError{Field: "File", Value: spec.name, Reason: "file name must not be empty"}
		case strings.Contains(spec.name, nameSep):
			return &model.ConfigurationError{Field: "File", Value: spec.name, Reason: `file name must not contain "__"`}
		case seen[spec.name]:
			return &model.ConfigurationError{Field: "File", Value: spec.name, Reason: "file declared twice"}
		}
		seen[spec.name] = true

		fields := make(map[string]bool, len(spec.fields))
		for _, field := range spec.fields {
			switch {
			case field == "":
				return &model.ConfigurationError{Field: "Field", Value: spec.name + ".", Reason: "field name must not be empty"}
			case strings.Contains(field, nameSep):
				return &model.ConfigurationError{Field: "Field", Value: field, Reason: `field name must not contain "__"`}
			case fields[field]:
				return &model.ConfigurationError{Field: "Field", Value: field, Reason: "field declared twice on " + spec.name}
			}
			fields[field] = true
		}
	}
	return nil
}

// ensureTables creates every declared table in one writable transaction.
func (db *Database) ensureTables() error {
	txn, err := db.st.Begin(true)
	if err != nil {
		return err
	}
	for _, name := range db.tableNames() {
		if _, err := txn.Table(name); err != nil {
			_ = txn.Rollback()
			return err
		}
	}
	return txn.Commit()
}

// tableNames lists every table backing the declared files, in declaration
// order.
func (db *Database) tableNames() []string {
	names := make([]string, 0, len(db.specs)*3)
	for _, spec := range db.specs {
		names = append(names, spec.name, existTableName(spec.name), controlTableName(spec.name))
		for _, field := range spec.fields {
			names = append(names,
				rowsTableName(spec.name, field),
				listTableName(spec.name, field),
				bitmapTableName(spec.name, field),
			)
		}
	}
	return names
}

// ID returns the database's instance identity. Record sets carry it as
// their origin, and set algebra refuses to combine sets from different
// identities.
func (db *Database) ID() string { return db.id }

// Geometry returns the segment geometry shared by every file.
func (db *Database) Geometry() model.Geometry { return db.geo }

// Close abandons any open transaction and releases the store.
func (db *Database) Close() error {
	if db.txn != nil {
		_ = db.Rollback()
	}
	db.log.Debug("database closed", "id", db.id)
	return db.st.Close()
}

// Begin starts a unit of work. File handles obtained afterwards are bound
// to this transaction and become invalid at Commit or Rollback.
func (db *Database) Begin(writable bool) error {
	if db.txn != nil {
		return ErrTransactionOpen
	}
	txn, err := db.st.Begin(writable)
	if err != nil {
		return err
	}
	db.txn = txn
	db.writable = writable
	db.files = make(map[string]*File)
	return nil
}

// Commit ends the unit of work, keeping its writes.
func (db *Database) Commit() error {
	if db.txn == nil {
		return ErrNoTransaction
	}
	db.harvest()
	err := db.txn.Commit()
	db.txn = nil
	db.files = nil
	db.log.Debug("transaction committed", "writable", db.writable, "error", err)
	return err
}

// Rollback ends the unit of work, discarding its writes.
func (db *Database) Rollback() error {
	if db.txn == nil {
		return ErrNoTransaction
	}
	db.harvest()
	err := db.txn.Rollback()
	db.txn = nil
	db.files = nil
	db.log.Debug("transaction rolled back", "writable", db.writable, "error", err)
	return err
}

// harvest hands each touched index's counters to the metrics collector
// before the transaction's file handles go away.
func (db *Database) harvest() {
	for name, f := range db.files {
		for field, x := range f.indexes {
			db.metrics.RecordIndexStats(name, field, x.Stats())
		}
	}
}

// File returns the handle for one declared file, bound to the open
// transaction. Handles are cached per transaction.
func (db *Database) File(name string) (*File, error) {
	if db.txn == nil {
		return nil, ErrNoTransaction
	}
	if f, ok := db.files[name]; ok {
		return f, nil
	}
	spec, ok := db.spec(name)
	if !ok {
		return nil, fmt.Errorf("file %q: %w", name, ErrUnknownFile)
	}
	f, err := db.openFile(spec)
	if err != nil {
		return nil, err
	}
	db.files[name] = f
	return f, nil
}

func (db *Database) spec(name string) (fileSpec, bool) {
	for _, spec := range db.specs {
		if spec.name == name {
			return spec, true
		}
	}
	return fileSpec{}, false
}

// GuardOptions configure guard snapshots.
type GuardOptions struct {
	// Compression selects the object compression, archive.Zstd by default.
	Compression archive.Compression

	// Workers bounds concurrent sink transfers.
	Workers int

	// BytesPerSecond throttles transfers; zero means unthrottled.
	BytesPerSecond int

	// Ledger records completed guard writes; nil skips publication.
	Ledger archive.Ledger
}

// Guard builds a snapshot guard covering every table of every declared
// file. The guard captures and restores through its own transactions, so
// none may be open here.
func (db *Database) Guard(name string, sink archive.Sink, optFns ...func(o *GuardOptions)) (*archive.Guard, error) {
	if db.txn != nil {
		return nil, ErrTransactionOpen
	}
	opts := GuardOptions{
		Compression: archive.Zstd,
		Workers:     archive.DefaultWorkers,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return archive.NewGuard(archive.Config{
		Store:          db.st,
		Tables:         db.tableNames(),
		Sink:           sink,
		Name:           name,
		Compression:    opts.Compression,
		Workers:        opts.Workers,
		BytesPerSecond: opts.BytesPerSecond,
		Ledger:         opts.Ledger,
		Logger:         db.log.Logger,
	})
}

// GuardedLoad runs fn under a guard snapshot: the guard is written first,
// then fn runs; on success the guard is deleted, on failure the captured
// state is restored and fn's error returned. fn manages its own
// transactions; one left open when fn fails is rolled back before the
// restore.
func (db *Database) GuardedLoad(ctx context.Context, g *archive.Guard, fn func() error) error {
	if db.txn != nil {
		return ErrTransactionOpen
	}
	if err := g.Write(ctx); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if db.txn != nil {
			_ = db.Rollback()
		}
		if rerr := g.Restore(ctx); rerr != nil {
			return errors.Join(err, rerr)
		}
		db.metrics.RecordGuardStats(g.Name(), g.Stats())
		return err
	}
	db.metrics.RecordGuardStats(g.Name(), g.Stats())
	return g.Delete(ctx)
}
