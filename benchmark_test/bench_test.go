// Package benchmark_test measures the hot paths of the database: record
// maintenance, deferred loads, index reads and record set algebra.
//
// Run everything with:
//
//	go test -bench=. ./benchmark_test/... -benchmem
package benchmark_test

import (
	"fmt"
	"path/filepath"
	"testing"

	solentbase "github.com/RogerMarsh/solentware-base-sub000"
	"github.com/RogerMarsh/solentware-base-sub000/store"
	"github.com/RogerMarsh/solentware-base-sub000/store/boltstore"
	"github.com/RogerMarsh/solentware-base-sub000/store/memstore"
	"github.com/RogerMarsh/solentware-base-sub000/store/pebblestore"
	"github.com/RogerMarsh/solentware-base-sub000/testutil"
)

const (
	benchSeed = 42
	// zipfSkew matches what real index fields look like: a few values own
	// most of the records.
	zipfSkew = 1.1
)

// benchBackends are the stores the maintenance benchmarks compare.
var benchBackends = []struct {
	name string
	open func(b *testing.B) store.Store
}{
	{"Mem", func(b *testing.B) store.Store {
		return memstore.New()
	}},
	{"Bolt", func(b *testing.B) store.Store {
		s, err := boltstore.Open(filepath.Join(b.TempDir(), "bench.db"))
		if err != nil {
			b.Fatal(err)
		}
		return s
	}},
	{"Pebble", func(b *testing.B) store.Store {
		s, err := pebblestore.Open(b.TempDir())
		if err != nil {
			b.Fatal(err)
		}
		return s
	}},
}

func openBenchDatabase(b *testing.B, st store.Store) *solentbase.Database {
	b.Helper()
	db, err := solentbase.Open(st, solentbase.WithFile("games", "white", "black"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { db.Close() })
	return db
}

// benchRecord builds the i-th record of a Zipf-skewed workload. values
// and picks come from workload.
type workload struct {
	values []string
	picks  []int
}

func newWorkload(n, valueCount int) workload {
	rng := testutil.NewRNG(benchSeed)
	return workload{
		values: rng.Values(valueCount),
		picks:  rng.ZipfValues(n, valueCount, zipfSkew),
	}
}

func (w workload) record(i int) solentbase.Record {
	return solentbase.Record{
		Data: fmt.Appendf(nil, "game %d", i),
		Fields: map[string][]string{
			"white": {w.values[w.picks[i]]},
			"black": {w.values[(w.picks[i]+1)%len(w.values)]},
		},
	}
}

// seedDeferred bulk loads n records and commits, leaving the database
// ready for read benchmarks.
func seedDeferred(b *testing.B, db *solentbase.Database, w workload, n int) {
	b.Helper()
	if err := db.Begin(true); err != nil {
		b.Fatal(err)
	}
	games, err := db.File("games")
	if err != nil {
		b.Fatal(err)
	}
	load, err := games.StartLoad()
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if _, err := load.Put(w.record(i)); err != nil {
			b.Fatal(err)
		}
	}
	if err := load.Finish(); err != nil {
		b.Fatal(err)
	}
	if err := db.Commit(); err != nil {
		b.Fatal(err)
	}
}
