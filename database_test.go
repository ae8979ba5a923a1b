package solentbase

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/store/memstore"
)

// testDatabase opens a database over a fresh in-memory store with a small
// geometry so segment boundaries and representation changes show up after
// a handful of records.
func testDatabase(t *testing.T, optFns ...Option) *Database {
	t.Helper()
	opts := append([]Option{
		WithGeometry(model.Geometry{SegmentSize: 16, ConversionLimit: 4}),
		WithFile("games", "white", "black"),
	}, optFns...)
	db, err := Open(memstore.New(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func game(data, white, black string) Record {
	return Record{
		Data: []byte(data),
		Fields: map[string][]string{
			"white": {white},
			"black": {black},
		},
	}
}

func TestOpenValidation(t *testing.T) {
	cases := []struct {
		name string
		opts []Option
	}{
		{"segment size not a multiple of eight", []Option{
			WithSegmentSize(10),
			WithFile("games", "white"),
		}},
		{"segment size over the cap", []Option{
			WithSegmentSize(65544),
			WithFile("games", "white"),
		}},
		{"conversion limit at segment size", []Option{
			WithGeometry(model.Geometry{SegmentSize: 16, ConversionLimit: 16}),
			WithFile("games", "white"),
		}},
		{"empty file name", []Option{
			WithFile("", "white"),
		}},
		{"file name with separator", []Option{
			WithFile("games__archive", "white"),
		}},
		{"duplicate file", []Option{
			WithFile("games", "white"),
			WithFile("games", "black"),
		}},
		{"empty field name", []Option{
			WithFile("games", ""),
		}},
		{"field name with separator", []Option{
			WithFile("games", "white__field"),
		}},
		{"duplicate field", []Option{
			WithFile("games", "white", "white"),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Open(memstore.New(), tc.opts...)
			require.Error(t, err)
			var cfg *ConfigurationError
			assert.True(t, errors.As(err, &cfg), "got %v", err)
		})
	}
}

func TestOpenNilStore(t *testing.T) {
	_, err := Open(nil, WithFile("games", "white"))
	require.Error(t, err)
	var cfg *ConfigurationError
	require.True(t, errors.As(err, &cfg))
	assert.Equal(t, "Store", cfg.Field)
}

func TestFreshDatabaseReadable(t *testing.T) {
	db := testDatabase(t)

	// ensureTables ran at Open, so a read-only transaction finds every
	// table even though nothing was ever written.
	require.NoError(t, db.Begin(false))
	f, err := db.File("games")
	require.NoError(t, err)

	n, err := f.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	set, err := f.Find("white", "carlsen")
	require.NoError(t, err)
	assert.Equal(t, 0, set.Count())
	require.NoError(t, db.Rollback())
}

func TestPutFindRoundTrip(t *testing.T) {
	db := testDatabase(t)

	require.NoError(t, db.Begin(true))
	f, err := db.File("games")
	require.NoError(t, err)

	r0, err := f.Put(game("g0", "carlsen", "caruana"))
	require.NoError(t, err)
	r1, err := f.Put(game("g1", "carlsen", "nepo"))
	require.NoError(t, err)
	r2, err := f.Put(game("g2", "ding", "carlsen"))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, []int{r0, r1, r2})

	require.NoError(t, db.Commit())

	require.NoError(t, db.Begin(false))
	f, err = db.File("games")
	require.NoError(t, err)

	data, found, err := f.Get(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("g1"), data)

	n, err := f.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	set, err := f.Find("white", "carlsen")
	require.NoError(t, err)
	assert.Equal(t, 2, set.Count())
	assert.True(t, set.Contains(0))
	assert.True(t, set.Contains(1))
	assert.False(t, set.Contains(2))

	n, err = f.CountValue("black", "carlsen")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, db.Rollback())
}

func TestTransactionGates(t *testing.T) {
	db := testDatabase(t)

	_, err := db.File("games")
	assert.ErrorIs(t, err, ErrNoTransaction)
	assert.ErrorIs(t, db.Commit(), ErrNoTransaction)
	assert.ErrorIs(t, db.Rollback(), ErrNoTransaction)

	require.NoError(t, db.Begin(true))
	assert.ErrorIs(t, db.Begin(true), ErrTransactionOpen)
	assert.ErrorIs(t, db.Begin(false), ErrTransactionOpen)
	require.NoError(t, db.Commit())

	require.NoError(t, db.Begin(false))
	f, err := db.File("games")
	require.NoError(t, err)

	_, err = f.Put(game("g", "a", "b"))
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = f.Delete(0, game("g", "a", "b"))
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = f.Update(0, game("g", "a", "b"), game("g2", "a", "b"))
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = f.StartLoad()
	assert.ErrorIs(t, err, ErrReadOnly)
	require.NoError(t, db.Rollback())
}

func TestUnknownFileAndField(t *testing.T) {
	db := testDatabase(t)
	require.NoError(t, db.Begin(true))

	_, err := db.File("positions")
	assert.ErrorIs(t, err, ErrUnknownFile)

	f, err := db.File("games")
	require.NoError(t, err)

	_, err = f.Put(Record{Data: []byte("g"), Fields: map[string][]string{"event": {"candidates"}}})
	assert.ErrorIs(t, err, ErrUnknownField)
	_, err = f.Find("event", "candidates")
	assert.ErrorIs(t, err, ErrUnknownField)
	_, err = f.Cursor("event")
	assert.ErrorIs(t, err, ErrUnknownField)
	require.NoError(t, db.Rollback())
}

func TestFileHandleCachedPerTransaction(t *testing.T) {
	db := testDatabase(t)

	require.NoError(t, db.Begin(true))
	f1, err := db.File("games")
	require.NoError(t, err)
	f2, err := db.File("games")
	require.NoError(t, err)
	assert.Same(t, f1, f2)
	require.NoError(t, db.Commit())

	require.NoError(t, db.Begin(false))
	f3, err := db.File("games")
	require.NoError(t, err)
	assert.NotSame(t, f1, f3)
	require.NoError(t, db.Rollback())
}

func TestDeleteRecord(t *testing.T) {
	db := testDatabase(t)
	require.NoError(t, db.Begin(true))
	f, err := db.File("games")
	require.NoError(t, err)

	rec := game("g0", "tal", "fischer")
	r0, err := f.Put(rec)
	require.NoError(t, err)
	_, err = f.Put(game("g1", "tal", "spassky"))
	require.NoError(t, err)

	gone, err := f.Delete(r0, rec)
	require.NoError(t, err)
	assert.True(t, gone)

	exists, err := f.Exists(r0)
	require.NoError(t, err)
	assert.False(t, exists)

	_, found, err := f.Get(r0)
	require.NoError(t, err)
	assert.False(t, found)

	set, err := f.Find("white", "tal")
	require.NoError(t, err)
	assert.Equal(t, 1, set.Count())
	assert.False(t, set.Contains(r0))

	set, err = f.Find("black", "fischer")
	require.NoError(t, err)
	assert.Equal(t, 0, set.Count())

	// Deleting twice reports nothing deleted.
	gone, err = f.Delete(r0, rec)
	require.NoError(t, err)
	assert.False(t, gone)
	require.NoError(t, db.Commit())
}

func TestUpdateReindexes(t *testing.T) {
	db := testDatabase(t)
	require.NoError(t, db.Begin(true))
	f, err := db.File("games")
	require.NoError(t, err)

	old := game("g0", "kramnik", "anand")
	record, err := f.Put(old)
	require.NoError(t, err)

	updated, err := f.Update(record, old, game("g0 revised", "kramnik", "topalov"))
	require.NoError(t, err)
	assert.True(t, updated)

	data, found, err := f.Get(record)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("g0 revised"), data)

	set, err := f.Find("black", "anand")
	require.NoError(t, err)
	assert.Equal(t, 0, set.Count())

	set, err = f.Find("black", "topalov")
	require.NoError(t, err)
	assert.True(t, set.Contains(record))

	// The unchanged field keeps its entry.
	set, err = f.Find("white", "kramnik")
	require.NoError(t, err)
	assert.True(t, set.Contains(record))

	// Updating an absent record changes nothing.
	updated, err = f.Update(99, old, old)
	require.NoError(t, err)
	assert.False(t, updated)
	require.NoError(t, db.Commit())
}

func TestPutReusesFreedSlot(t *testing.T) {
	db := testDatabase(t)
	require.NoError(t, db.Begin(true))
	f, err := db.File("games")
	require.NoError(t, err)

	// Fill segment 0 and start segment 1 so freed slots below the high
	// segment become eligible for reuse.
	for i := 0; i < 17; i++ {
		_, err := f.Put(Record{Data: []byte(fmt.Sprintf("g%d", i))})
		require.NoError(t, err)
	}

	gone, err := f.Delete(3, Record{})
	require.NoError(t, err)
	require.True(t, gone)

	record, err := f.Put(Record{Data: []byte("reused")})
	require.NoError(t, err)
	assert.Equal(t, 3, record)

	data, found, err := f.Get(3)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("reused"), data)

	// With no freed slot left the next record appends.
	record, err = f.Put(Record{Data: []byte("g17")})
	require.NoError(t, err)
	assert.Equal(t, 17, record)
	require.NoError(t, db.Commit())
}

func TestAllRecordsAndSetAlgebra(t *testing.T) {
	db := testDatabase(t)
	require.NoError(t, db.Begin(true))
	f, err := db.File("games")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		white := "carlsen"
		if i == 2 {
			white = "ding"
		}
		_, err := f.Put(game(fmt.Sprintf("g%d", i), white, "nepo"))
		require.NoError(t, err)
	}

	all, err := f.AllRecords()
	require.NoError(t, err)
	assert.Equal(t, 3, all.Count())

	carlsen, err := f.Find("white", "carlsen")
	require.NoError(t, err)

	rest, err := all.Xor(carlsen)
	require.NoError(t, err)
	assert.Equal(t, 1, rest.Count())
	assert.True(t, rest.Contains(2))

	both, err := all.And(carlsen)
	require.NoError(t, err)
	assert.Equal(t, 2, both.Count())
	require.NoError(t, db.Commit())
}

func TestSetAlgebraRejectsForeignOrigin(t *testing.T) {
	db1 := testDatabase(t)
	db2 := testDatabase(t)

	require.NoError(t, db1.Begin(true))
	f1, err := db1.File("games")
	require.NoError(t, err)
	_, err = f1.Put(game("g", "a", "b"))
	require.NoError(t, err)
	s1, err := f1.Find("white", "a")
	require.NoError(t, err)

	require.NoError(t, db2.Begin(true))
	f2, err := db2.File("games")
	require.NoError(t, err)
	_, err = f2.Put(game("g", "a", "b"))
	require.NoError(t, err)
	s2, err := f2.Find("white", "a")
	require.NoError(t, err)

	_, err = s1.Or(s2)
	require.Error(t, err)
	var mismatch *OriginMismatchError
	assert.True(t, errors.As(err, &mismatch))

	require.NoError(t, db1.Rollback())
	require.NoError(t, db2.Rollback())
}

func TestFieldCursor(t *testing.T) {
	db := testDatabase(t)
	require.NoError(t, db.Begin(true))
	f, err := db.File("games")
	require.NoError(t, err)

	_, err = f.Put(game("g0", "adams", "botvinnik"))
	require.NoError(t, err)
	_, err = f.Put(game("g1", "carlsen", "adams"))
	require.NoError(t, err)
	_, err = f.Put(game("g2", "carlsen", "tal"))
	require.NoError(t, err)

	cur, err := f.Cursor("white")
	require.NoError(t, err)
	defer cur.Close()

	type pair struct {
		value  string
		record int
	}
	var got []pair
	for v, r, ok := cur.First(); ok; v, r, ok = cur.Next() {
		got = append(got, pair{v, r})
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []pair{{"adams", 0}, {"carlsen", 1}, {"carlsen", 2}}, got)

	v, r, ok := cur.Nearest("b")
	require.True(t, ok)
	assert.Equal(t, "carlsen", v)
	assert.Equal(t, 1, r)
	require.NoError(t, db.Commit())
}

func TestRecordCursorSkipsDeleted(t *testing.T) {
	db := testDatabase(t)
	require.NoError(t, db.Begin(true))
	f, err := db.File("games")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.Put(Record{Data: []byte(fmt.Sprintf("g%d", i))})
		require.NoError(t, err)
	}
	_, err = f.Delete(1, Record{})
	require.NoError(t, err)

	cur, err := f.RecordCursor()
	require.NoError(t, err)
	defer cur.Close()

	var records []int
	for r, _, ok := cur.First(); ok; r, _, ok = cur.Next() {
		records = append(records, r)
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []int{0, 2}, records)
	require.NoError(t, db.Commit())
}

func TestMetricsCollection(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	db := testDatabase(t, WithMetricsCollector(metrics))

	require.NoError(t, db.Begin(true))
	f, err := db.File("games")
	require.NoError(t, err)

	// Five puts of the same white value walk that index through integer,
	// list and bitmap; deleting one shrinks it back to a list. The black
	// values stay distinct so only one field converts.
	for i := 0; i < 5; i++ {
		_, err := f.Put(game(fmt.Sprintf("g%d", i), "kasparov", fmt.Sprintf("opp%d", i)))
		require.NoError(t, err)
	}
	_, err = f.Delete(4, game("g4", "kasparov", "opp4"))
	require.NoError(t, err)
	_, err = f.Find("white", "kasparov")
	require.NoError(t, err)
	require.NoError(t, db.Commit())

	stats := metrics.GetStats()
	assert.Equal(t, int64(5), stats.PutCount)
	assert.Equal(t, int64(0), stats.PutErrors)
	assert.Equal(t, int64(1), stats.DeleteCount)
	assert.Equal(t, int64(1), stats.FindCount)
	assert.Equal(t, int64(1), stats.IntToList)
	assert.Equal(t, int64(1), stats.ListToBitmap)
	assert.Equal(t, int64(1), stats.BitmapToList)
}

func TestDistinctDatabaseIdentity(t *testing.T) {
	db1 := testDatabase(t)
	db2 := testDatabase(t)
	assert.NotEmpty(t, db1.ID())
	assert.NotEqual(t, db1.ID(), db2.ID())
}
