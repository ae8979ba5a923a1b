package integration_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	solentbase "github.com/RogerMarsh/solentware-base-sub000"
	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/store"
	"github.com/RogerMarsh/solentware-base-sub000/store/boltstore"
	"github.com/RogerMarsh/solentware-base-sub000/store/memstore"
	"github.com/RogerMarsh/solentware-base-sub000/store/pebblestore"
)

// backends lists every store adapter the scenarios run against.
var backends = []struct {
	name string
	open func(t *testing.T) store.Store
}{
	{"memstore", func(t *testing.T) store.Store {
		return memstore.New()
	}},
	{"boltstore", func(t *testing.T) store.Store {
		s, err := boltstore.Open(filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		return s
	}},
	{"pebblestore", func(t *testing.T) store.Store {
		s, err := pebblestore.Open(t.TempDir())
		require.NoError(t, err)
		return s
	}},
}

// testGeometry keeps segments small enough that a handful of records
// crosses segment boundaries and representation limits.
func testGeometry() model.Geometry {
	return model.Geometry{SegmentSize: 16, ConversionLimit: 4}
}

func openDatabase(t *testing.T, st store.Store) *solentbase.Database {
	t.Helper()
	db, err := solentbase.Open(st,
		solentbase.WithGeometry(testGeometry()),
		solentbase.WithFile("games", "white", "black"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// forEachBackend runs fn once per store adapter.
func forEachBackend(t *testing.T, fn func(t *testing.T, db *solentbase.Database)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, openDatabase(t, b.open(t)))
		})
	}
}

func game(data, white, black string) solentbase.Record {
	return solentbase.Record{
		Data: []byte(data),
		Fields: map[string][]string{
			"white": {white},
			"black": {black},
		},
	}
}
