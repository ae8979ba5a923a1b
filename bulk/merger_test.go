package bulk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RogerMarsh/solentware-base-sub000/alloc"
	"github.com/RogerMarsh/solentware-base-sub000/index"
	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/recordset"
	"github.com/RogerMarsh/solentware-base-sub000/store"
	"github.com/RogerMarsh/solentware-base-sub000/store/memstore"
)

func testGeometry() model.Geometry {
	return model.Geometry{SegmentSize: 16, ConversionLimit: 4}
}

// testIndexes builds secondary indexes for the named fields over one
// writable in-memory transaction.
func testIndexes(t *testing.T, fields ...string) map[string]*index.Secondary {
	t.Helper()
	s := memstore.New()
	t.Cleanup(func() { s.Close() })
	tx, err := s.Begin(true)
	require.NoError(t, err)

	table := func(name string) store.Table {
		tbl, err := tx.Table(name)
		require.NoError(t, err)
		return tbl
	}
	out := make(map[string]*index.Secondary, len(fields))
	for _, field := range fields {
		x, err := index.NewSecondary(index.Config{
			Geometry: testGeometry(),
			Name:     field,
			Rows:     table("games__" + field),
			Lists:    table("games__" + field + "_list"),
			Bitmaps:  table("games__" + field + "_bitmap"),
		})
		require.NoError(t, err)
		out[field] = x
	}
	return out
}

func testMerger(t *testing.T, indexes map[string]*index.Secondary, high int) *Merger {
	t.Helper()
	m, err := NewMerger(Config{Geometry: testGeometry(), Indexes: indexes, HighSegment: high})
	require.NoError(t, err)
	return m
}

func countFor(t *testing.T, x *index.Secondary, value string) int {
	t.Helper()
	n, err := x.CountFor(value)
	require.NoError(t, err)
	return n
}

func TestMergerFlushesOncePerSegment(t *testing.T) {
	indexes := testIndexes(t, "moves")
	m := testMerger(t, indexes, -1)

	// Records 0..19: crossing into segment 1 closes segment 0 with its
	// sixteen members, the last four stay buffered until Finish.
	for r := 0; r < 20; r++ {
		require.NoError(t, m.Add("moves", "k", r))
	}
	assert.Equal(t, 16, countFor(t, indexes["moves"], "k"))
	assert.Equal(t, int64(1), m.Stats().Flushes)

	require.NoError(t, m.Finish())
	assert.Equal(t, 20, countFor(t, indexes["moves"], "k"))

	stats := m.Stats()
	assert.Equal(t, int64(20), stats.Added)
	assert.Equal(t, int64(2), stats.Flushes)
	assert.Equal(t, int64(2), stats.Rows)
	assert.Equal(t, int64(0), stats.Splices)
}

func TestMergerSplicesIntoHighSegment(t *testing.T) {
	indexes := testIndexes(t, "moves")
	x := indexes["moves"]
	require.NoError(t, x.Put("k", 3))
	require.NoError(t, x.Put("k", 5))

	m := testMerger(t, indexes, 0)
	require.NoError(t, m.Add("moves", "k", 6))
	require.NoError(t, m.Add("moves", "k", 7))
	require.NoError(t, m.Add("moves", "k", 16))
	require.NoError(t, m.Finish())

	assert.Equal(t, 5, countFor(t, x, "k"))
	assert.Equal(t, int64(1), m.Stats().Splices)

	// One row per (value, segment): the splice merged instead of
	// duplicating the pair.
	set, err := x.ReadSet(recordset.Origin{Database: "test", Table: "games"}, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	for _, r := range []int{3, 5, 6, 7, 16} {
		assert.True(t, set.Contains(r), "record %d", r)
	}
}

func TestMergerChunksSpliceAfterFinish(t *testing.T) {
	indexes := testIndexes(t, "moves")
	x := indexes["moves"]
	m := testMerger(t, indexes, -1)

	require.NoError(t, m.Add("moves", "k", 0))
	require.NoError(t, m.Add("moves", "k", 1))
	require.NoError(t, m.Finish())

	// The next chunk revisits segment 0 and must merge with the rows the
	// first chunk wrote.
	require.NoError(t, m.Add("moves", "k", 2))
	require.NoError(t, m.Add("moves", "q", 2))
	require.NoError(t, m.Finish())

	assert.Equal(t, 3, countFor(t, x, "k"))
	assert.Equal(t, 1, countFor(t, x, "q"))

	set, err := x.ReadSet(recordset.Origin{Database: "test", Table: "games"}, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Splices, "only the revisited value merges with an existing row")
}

func TestMergerMultipleFieldsAndValues(t *testing.T) {
	indexes := testIndexes(t, "moves", "players")
	m := testMerger(t, indexes, -1)

	require.NoError(t, m.Add("moves", "e4", 0))
	require.NoError(t, m.Add("players", "adams", 0))
	require.NoError(t, m.Add("moves", "d4", 1))
	require.NoError(t, m.Add("players", "adams", 1))
	require.NoError(t, m.Add("moves", "e4", 17))
	require.NoError(t, m.Finish())

	assert.Equal(t, 2, countFor(t, indexes["moves"], "e4"))
	assert.Equal(t, 1, countFor(t, indexes["moves"], "d4"))
	assert.Equal(t, 2, countFor(t, indexes["players"], "adams"))

	stats := m.Stats()
	assert.Equal(t, int64(5), stats.Added)
	assert.Equal(t, int64(2), stats.Flushes)
	assert.Equal(t, int64(4), stats.Rows)
}

func TestMergerRejectsLowerSegment(t *testing.T) {
	indexes := testIndexes(t, "moves")
	m := testMerger(t, indexes, -1)

	require.NoError(t, m.Add("moves", "k", 16))
	var notSupported *model.NotSupportedError
	assert.ErrorAs(t, m.Add("moves", "k", 0), &notSupported)
}

func TestMergerRejectsBadAdds(t *testing.T) {
	indexes := testIndexes(t, "moves")
	m := testMerger(t, indexes, -1)

	var notSupported *model.NotSupportedError
	assert.ErrorAs(t, m.Add("colors", "red", 0), &notSupported)
	assert.ErrorAs(t, m.Add("moves", "k", -1), &notSupported)
	assert.ErrorIs(t, m.Add("moves", "k\x00", 0), index.ErrValueByte)
}

func TestNewMergerWantsIndexes(t *testing.T) {
	_, err := NewMerger(Config{Geometry: testGeometry()})
	var config *model.ConfigurationError
	assert.ErrorAs(t, err, &config)
}
