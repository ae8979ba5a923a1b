package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"path"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/store"
)

// DefaultWorkers is the number of parallel sink transfers per guard
// operation.
const DefaultWorkers = 4

const (
	guardVersion   = 1
	manifestObject = "GUARD"
	objectSuffix   = ".grd"
)

// Config wires a Guard to its store and sink.
type Config struct {
	// Store is the database being guarded.
	Store store.Store
	// Tables names the tables the guard captures and restores.
	Tables []string
	// Sink receives the guard objects.
	Sink Sink
	// Name scopes every object of this guard; objects live under
	// "<name>/".
	Name        string
	Compression Compression
	// Workers caps parallel transfers; 0 means DefaultWorkers.
	Workers int
	// BytesPerSecond throttles transfers; 0 means unthrottled.
	BytesPerSecond int
	// Ledger, when set, records every completed Write as a new version
	// of the guard name. Nil skips publication.
	Ledger Ledger
	Logger *slog.Logger
}

// Stats counts what a guard transferred.
type Stats struct {
	TablesWritten  int64
	TablesRestored int64
	BytesOut       int64
	BytesIn        int64
}

// Guard snapshots tables to a sink before a bulk load and puts them back
// if the load fails. Methods may be called from one goroutine at a time.
type Guard struct {
	st      store.Store
	tables  []string
	sink    Sink
	name    string
	comp    Compression
	workers int
	limiter *rate.Limiter
	ledger  Ledger
	log     *slog.Logger

	tablesWritten  atomic.Int64
	tablesRestored atomic.Int64
	bytesOut       atomic.Int64
	bytesIn        atomic.Int64
}

// NewGuard validates cfg and returns the guard.
func NewGuard(cfg Config) (*Guard, error) {
	if cfg.Store == nil {
		return nil, &model.ConfigurationError{Field: "Store", Value: nil, Reason: "is required"}
	}
	if cfg.Sink == nil {
		return nil, &model.ConfigurationError{Field: "Sink", Value: nil, Reason: "is required"}
	}
	if cfg.Name == "" {
		return nil, &model.ConfigurationError{Field: "Name", Value: cfg.Name, Reason: "must not be empty"}
	}
	if len(cfg.Tables) == 0 {
		return nil, &model.ConfigurationError{Field: "Tables", Value: cfg.Tables, Reason: "must name at least one table"}
	}
	if !cfg.Compression.valid() {
		return nil, &model.ConfigurationError{Field: "Compression", Value: cfg.Compression, Reason: "unknown algorithm"}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	g := &Guard{
		st:      cfg.Store,
		tables:  append([]string(nil), cfg.Tables...),
		sink:    cfg.Sink,
		name:    cfg.Name,
		comp:    cfg.Compression,
		workers: workers,
		ledger:  cfg.Ledger,
		log:     log,
	}
	if cfg.BytesPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.BytesPerSecond), cfg.BytesPerSecond)
	}
	return g, nil
}

// Name returns the guard name.
func (g *Guard) Name() string { return g.name }

// Stats returns a snapshot of the transfer counters.
func (g *Guard) Stats() Stats {
	return Stats{
		TablesWritten:  g.tablesWritten.Load(),
		TablesRestored: g.tablesRestored.Load(),
		BytesOut:       g.bytesOut.Load(),
		BytesIn:        g.bytesIn.Load(),
	}
}

func (g *Guard) object(table string) string {
	return path.Join(g.name, table+objectSuffix)
}

func (g *Guard) manifest() string {
	return path.Join(g.name, manifestObject)
}

// throttle waits out the transfer budget for n bytes, in burst-sized
// slices so objects larger than the burst still pass.
func (g *Guard) throttle(ctx context.Context, n int) error {
	if g.limiter == nil {
		return nil
	}
	for n > 0 {
		slice := n
		if burst := g.limiter.Burst(); slice > burst {
			slice = burst
		}
		if err := g.limiter.WaitN(ctx, slice); err != nil {
			return err
		}
		n -= slice
	}
	return nil
}

type guardManifest struct {
	Version     int             `json:"version"`
	Created     time.Time       `json:"created"`
	Compression Compression     `json:"compression"`
	Tables      []manifestEntry `json:"tables"`
}

type manifestEntry struct {
	Table    string `json:"table"`
	Object   string `json:"object"`
	Rows     int    `json:"rows"`
	Bytes    int64  `json:"bytes"`
	Checksum uint32 `json:"checksum"`
}

// Write captures the guarded tables and uploads them, manifest last. A
// table the store has never written to is captured as empty, so Restore
// returns a first load's tables to emptiness.
func (g *Guard) Write(ctx context.Context) error {
	txn, err := g.st.Begin(false)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	blobs := make([][]byte, len(g.tables))
	entries := make([]manifestEntry, len(g.tables))
	for i, name := range g.tables {
		var sequence uint64
		var rows []row
		tbl, err := txn.Table(name)
		switch {
		case errors.Is(err, store.ErrNoTable):
		case err != nil:
			return fmt.Errorf("archive: table %s: %w", name, err)
		default:
			if sequence, rows, err = readTable(tbl); err != nil {
				return fmt.Errorf("archive: table %s: %w", name, err)
			}
		}
		blob, err := seal(encodeTable(sequence, rows), g.comp)
		if err != nil {
			return err
		}
		blobs[i] = blob
		entries[i] = manifestEntry{
			Table:    name,
			Object:   g.object(name),
			Rows:     len(rows),
			Bytes:    int64(len(blob)),
			Checksum: crc32.ChecksumIEEE(blob),
		}
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.workers)
	for i := range blobs {
		grp.Go(func() error {
			if err := g.throttle(gctx, len(blobs[i])); err != nil {
				return err
			}
			if err := g.sink.Put(gctx, entries[i].Object, blobs[i]); err != nil {
				return fmt.Errorf("archive: object %s: %w", entries[i].Object, err)
			}
			g.bytesOut.Add(int64(len(blobs[i])))
			g.tablesWritten.Add(1)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	m := guardManifest{
		Version:     guardVersion,
		Created:     time.Now().UTC(),
		Compression: g.comp,
		Tables:      entries,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := g.sink.Put(ctx, g.manifest(), data); err != nil {
		return fmt.Errorf("archive: manifest: %w", err)
	}

	if g.ledger != nil {
		version, err := g.ledger.Commit(ctx, g.name, g.manifest())
		if err != nil {
			return fmt.Errorf("archive: ledger: %w", err)
		}
		g.log.Info("guard committed",
			slog.String("guard", g.name),
			slog.Uint64("version", version),
		)
	}

	g.log.Info("guard written",
		slog.String("guard", g.name),
		slog.Int("tables", len(entries)),
		slog.String("compression", g.comp.String()),
	)
	return nil
}

// Exists reports whether a complete guard is on the sink.
func (g *Guard) Exists(ctx context.Context) (bool, error) {
	_, err := g.sink.Get(ctx, g.manifest())
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the guard, manifest first so a partial delete never
// leaves a guard that claims to be complete.
func (g *Guard) Delete(ctx context.Context) error {
	if err := g.sink.Delete(ctx, g.manifest()); err != nil {
		return fmt.Errorf("archive: manifest: %w", err)
	}
	names, err := g.sink.List(ctx, g.name+"/")
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := g.sink.Delete(ctx, name); err != nil {
			return fmt.Errorf("archive: object %s: %w", name, err)
		}
	}
	g.log.Info("guard deleted", slog.String("guard", g.name))
	return nil
}

// Restore downloads the guard and rewrites the captured tables in one
// writable transaction: current rows go away, captured rows and append
// sequences come back. The guard itself stays on the sink.
func (g *Guard) Restore(ctx context.Context) error {
	data, err := g.sink.Get(ctx, g.manifest())
	if err != nil {
		return fmt.Errorf("archive: guard %s: %w", g.name, err)
	}
	var m guardManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: manifest: %v", ErrFormat, err)
	}
	if m.Version != guardVersion {
		return fmt.Errorf("%w: manifest version %d", ErrFormat, m.Version)
	}

	type image struct {
		sequence uint64
		rows     []row
	}
	images := make([]image, len(m.Tables))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.workers)
	for i := range m.Tables {
		grp.Go(func() error {
			entry := m.Tables[i]
			blob, err := g.sink.Get(gctx, entry.Object)
			if err != nil {
				return fmt.Errorf("archive: object %s: %w", entry.Object, err)
			}
			if err := g.throttle(gctx, len(blob)); err != nil {
				return err
			}
			if crc32.ChecksumIEEE(blob) != entry.Checksum {
				return fmt.Errorf("%w: object %s", ErrChecksum, entry.Object)
			}
			payload, err := unseal(blob)
			if err != nil {
				return fmt.Errorf("archive: object %s: %w", entry.Object, err)
			}
			sequence, rows, err := decodeTable(payload)
			if err != nil {
				return fmt.Errorf("archive: object %s: %w", entry.Object, err)
			}
			if len(rows) != entry.Rows {
				return fmt.Errorf("%w: object %s: %d rows, manifest says %d",
					ErrFormat, entry.Object, len(rows), entry.Rows)
			}
			g.bytesIn.Add(int64(len(blob)))
			images[i] = image{sequence: sequence, rows: rows}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	txn, err := g.st.Begin(true)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			txn.Rollback()
		}
	}()
	for i, entry := range m.Tables {
		tbl, err := txn.Table(entry.Table)
		if err != nil {
			return fmt.Errorf("archive: table %s: %w", entry.Table, err)
		}
		if err := clearTable(tbl); err != nil {
			return fmt.Errorf("archive: table %s: %w", entry.Table, err)
		}
		for _, r := range images[i].rows {
			if err := tbl.Put(r.Key, r.Value); err != nil {
				return fmt.Errorf("archive: table %s: %w", entry.Table, err)
			}
		}
		if err := tbl.SetSequence(images[i].sequence); err != nil {
			return fmt.Errorf("archive: table %s: %w", entry.Table, err)
		}
		g.tablesRestored.Add(1)
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	committed = true

	g.log.Info("guard restored",
		slog.String("guard", g.name),
		slog.Int("tables", len(m.Tables)),
	)
	return nil
}
