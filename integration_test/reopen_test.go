package integration_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	solentbase "github.com/RogerMarsh/solentware-base-sub000"
	"github.com/RogerMarsh/solentware-base-sub000/store"
	"github.com/RogerMarsh/solentware-base-sub000/store/boltstore"
	"github.com/RogerMarsh/solentware-base-sub000/store/pebblestore"
)

// TestReopenPersistence closes a populated database and opens the same
// files again, as a process restart would. Rows, indexes, the append
// sequence and the freed record pool all have to survive the round trip.
// Only the disk adapters take part.
func TestReopenPersistence(t *testing.T) {
	cases := []struct {
		name string
		open func(dir string) (store.Store, error)
	}{
		{"boltstore", func(dir string) (store.Store, error) {
			return boltstore.Open(filepath.Join(dir, "test.db"))
		}},
		{"pebblestore", func(dir string) (store.Store, error) {
			return pebblestore.Open(dir)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			openAt := func() *solentbase.Database {
				t.Helper()
				st, err := tc.open(dir)
				require.NoError(t, err)
				db, err := solentbase.Open(st,
					solentbase.WithGeometry(testGeometry()),
					solentbase.WithFile("games", "white", "black"),
				)
				require.NoError(t, err)
				return db
			}

			// First session: fill segment 0 and start segment 1.
			db := openAt()
			require.NoError(t, db.Begin(true))
			games, err := db.File("games")
			require.NoError(t, err)
			recs := make([]solentbase.Record, 20)
			for i := range recs {
				recs[i] = game(fmt.Sprintf("game %d", i), "tal", fmt.Sprintf("opp%d", i))
				record, err := games.Put(recs[i])
				require.NoError(t, err)
				require.Equal(t, i, record)
			}
			require.NoError(t, db.Commit())
			require.NoError(t, db.Close())

			// Second session: everything committed is still there.
			db = openAt()
			t.Cleanup(func() { db.Close() })

			require.NoError(t, db.Begin(false))
			games, err = db.File("games")
			require.NoError(t, err)

			n, err := games.Count()
			require.NoError(t, err)
			assert.Equal(t, 20, n)

			n, err = games.CountValue("white", "tal")
			require.NoError(t, err)
			assert.Equal(t, 20, n)

			set, err := games.Find("white", "tal")
			require.NoError(t, err)
			assert.Equal(t, 2, set.Len())

			data, found, err := games.Get(17)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "game 17", string(data))
			require.NoError(t, db.Rollback())

			// Appends continue where the first session stopped, and a
			// slot freed below the top segment is reused before any
			// further append.
			require.NoError(t, db.Begin(true))
			games, err = db.File("games")
			require.NoError(t, err)

			record, err := games.Put(game("game 20", "tal", "opp20"))
			require.NoError(t, err)
			assert.Equal(t, 20, record)

			ok, err := games.Delete(3, recs[3])
			require.NoError(t, err)
			require.True(t, ok)

			record, err = games.Put(game("game 3 redux", "tal", "opp3"))
			require.NoError(t, err)
			assert.Equal(t, 3, record)
			require.NoError(t, db.Commit())
		})
	}
}
