package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RogerMarsh/solentware-base-sub000/store"
)

// RunStoreSuite exercises the store contract against one adapter. The
// opener returns a fresh empty store per call; the suite closes it.
func RunStoreSuite(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("put get delete", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		tx, err := s.Begin(true)
		require.NoError(t, err)
		tbl, err := tx.Table("games")
		require.NoError(t, err)

		_, found, err := tbl.Get([]byte("white"))
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, tbl.Put([]byte("white"), []byte("carlsen")))
		require.NoError(t, tbl.Put([]byte("black"), []byte("caruana")))

		v, found, err := tbl.Get([]byte("white"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("carlsen"), v)

		require.NoError(t, tbl.Put([]byte("white"), []byte("anand")))
		require.NoError(t, tbl.Delete([]byte("black")))
		require.NoError(t, tbl.Delete([]byte("black")))
		require.NoError(t, tx.Commit())

		tx, err = s.Begin(false)
		require.NoError(t, err)
		tbl, err = tx.Table("games")
		require.NoError(t, err)

		v, found, err = tbl.Get([]byte("white"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("anand"), v)

		_, found, err = tbl.Get([]byte("black"))
		require.NoError(t, err)
		assert.False(t, found)
		require.NoError(t, tx.Rollback())
	})

	t.Run("missing table is an error read-only", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		tx, err := s.Begin(false)
		require.NoError(t, err)
		_, err = tx.Table("never-created")
		assert.ErrorIs(t, err, store.ErrNoTable)
		require.NoError(t, tx.Rollback())
	})

	t.Run("read-only writes are refused", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		tx, err := s.Begin(true)
		require.NoError(t, err)
		_, err = tx.Table("games")
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		tx, err = s.Begin(false)
		require.NoError(t, err)
		tbl, err := tx.Table("games")
		require.NoError(t, err)

		assert.ErrorIs(t, tbl.Put([]byte("k"), []byte("v")), store.ErrReadOnly)
		assert.ErrorIs(t, tbl.Delete([]byte("k")), store.ErrReadOnly)
		_, err = tbl.Append([]byte("v"))
		assert.ErrorIs(t, err, store.ErrReadOnly)
		assert.ErrorIs(t, tbl.SetSequence(7), store.ErrReadOnly)
		require.NoError(t, tx.Rollback())
	})

	t.Run("rollback discards", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		tx, err := s.Begin(true)
		require.NoError(t, err)
		tbl, err := tx.Table("games")
		require.NoError(t, err)
		require.NoError(t, tbl.Put([]byte("k"), []byte("v")))
		require.NoError(t, tx.Rollback())

		tx, err = s.Begin(false)
		require.NoError(t, err)
		_, err = tx.Table("games")
		assert.ErrorIs(t, err, store.ErrNoTable)
		require.NoError(t, tx.Rollback())
	})

	t.Run("append and sequence", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		tx, err := s.Begin(true)
		require.NoError(t, err)
		tbl, err := tx.Table("games")
		require.NoError(t, err)

		for i, payload := range []string{"first", "second", "third"} {
			n, err := tbl.Append([]byte(payload))
			require.NoError(t, err)
			assert.Equal(t, uint64(i), n)
		}

		seq, err := tbl.Sequence()
		require.NoError(t, err)
		assert.Equal(t, uint64(3), seq)

		v, found, err := tbl.Get(store.AppendKey(1))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("second"), v)

		require.NoError(t, tbl.SetSequence(10))
		n, err := tbl.Append([]byte("tenth"))
		require.NoError(t, err)
		assert.Equal(t, uint64(10), n)
		require.NoError(t, tx.Commit())

		tx, err = s.Begin(false)
		require.NoError(t, err)
		tbl, err = tx.Table("games")
		require.NoError(t, err)
		seq, err = tbl.Sequence()
		require.NoError(t, err)
		assert.Equal(t, uint64(11), seq)
		require.NoError(t, tx.Rollback())
	})

	t.Run("sequences are per table", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		tx, err := s.Begin(true)
		require.NoError(t, err)
		games, err := tx.Table("games")
		require.NoError(t, err)
		players, err := tx.Table("players")
		require.NoError(t, err)

		n, err := games.Append([]byte("g"))
		require.NoError(t, err)
		assert.Equal(t, uint64(0), n)
		n, err = games.Append([]byte("g"))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)
		n, err = players.Append([]byte("p"))
		require.NoError(t, err)
		assert.Equal(t, uint64(0), n)
		require.NoError(t, tx.Commit())
	})

	t.Run("tables are disjoint keyspaces", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		tx, err := s.Begin(true)
		require.NoError(t, err)
		games, err := tx.Table("games")
		require.NoError(t, err)
		players, err := tx.Table("players")
		require.NoError(t, err)

		require.NoError(t, games.Put([]byte("k"), []byte("game")))
		require.NoError(t, players.Put([]byte("k"), []byte("player")))

		v, found, err := games.Get([]byte("k"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("game"), v)

		v, found, err = players.Get([]byte("k"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("player"), v)
		require.NoError(t, tx.Commit())
	})

	t.Run("cursor walk", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		tx, err := s.Begin(true)
		require.NoError(t, err)
		tbl, err := tx.Table("games")
		require.NoError(t, err)
		for _, k := range []string{"bishop", "ash", "duke", "chess"} {
			require.NoError(t, tbl.Put([]byte(k), []byte("v-"+k)))
		}
		require.NoError(t, tx.Commit())

		tx, err = s.Begin(false)
		require.NoError(t, err)
		tbl, err = tx.Table("games")
		require.NoError(t, err)
		cur, err := tbl.Cursor()
		require.NoError(t, err)

		var forward []string
		for k, v, ok := cur.First(); ok; k, v, ok = cur.Next() {
			assert.Equal(t, "v-"+string(k), string(v))
			forward = append(forward, string(k))
		}
		assert.Equal(t, []string{"ash", "bishop", "chess", "duke"}, forward)

		k, _, ok := cur.Last()
		require.True(t, ok)
		assert.Equal(t, "duke", string(k))
		k, _, ok = cur.Prev()
		require.True(t, ok)
		assert.Equal(t, "chess", string(k))

		k, _, ok = cur.Seek([]byte("bz"))
		require.True(t, ok)
		assert.Equal(t, "chess", string(k))
		k, _, ok = cur.Seek([]byte("ash"))
		require.True(t, ok)
		assert.Equal(t, "ash", string(k))
		_, _, ok = cur.Seek([]byte("zz"))
		assert.False(t, ok)

		_, _, ok = cur.First()
		require.True(t, ok)
		_, _, ok = cur.Prev()
		assert.False(t, ok)

		require.NoError(t, cur.Err())
		require.NoError(t, cur.Close())
		require.NoError(t, tx.Rollback())
	})

	t.Run("cursor on empty table", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		tx, err := s.Begin(true)
		require.NoError(t, err)
		tbl, err := tx.Table("games")
		require.NoError(t, err)
		cur, err := tbl.Cursor()
		require.NoError(t, err)

		_, _, ok := cur.First()
		assert.False(t, ok)
		_, _, ok = cur.Last()
		assert.False(t, ok)
		_, _, ok = cur.Seek([]byte("a"))
		assert.False(t, ok)
		require.NoError(t, cur.Close())
		require.NoError(t, tx.Rollback())
	})

	t.Run("binary keys order bytewise", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		keys := [][]byte{
			{0x00},
			{0x00, 0x00},
			{0x00, 0x01},
			{0x41, 0x00, 0x00, 0x00, 0x02},
			{0x41, 0x00, 0x00, 0x00, 0x10},
			{0xFF, 0xFE},
			{0xFF, 0xFF},
		}

		tx, err := s.Begin(true)
		require.NoError(t, err)
		tbl, err := tx.Table("games")
		require.NoError(t, err)
		for _, k := range NewRNG(97).ShuffledKeys(keys) {
			require.NoError(t, tbl.Put(k, []byte{1}))
		}
		require.NoError(t, tx.Commit())

		tx, err = s.Begin(false)
		require.NoError(t, err)
		tbl, err = tx.Table("games")
		require.NoError(t, err)
		cur, err := tbl.Cursor()
		require.NoError(t, err)

		i := 0
		for k, _, ok := cur.First(); ok; k, _, ok = cur.Next() {
			require.Less(t, i, len(keys))
			assert.Equal(t, keys[i], k)
			i++
		}
		assert.Equal(t, len(keys), i)
		require.NoError(t, cur.Close())
		require.NoError(t, tx.Rollback())
	})

	t.Run("uncommitted writes stay private", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		seed, err := s.Begin(true)
		require.NoError(t, err)
		_, err = seed.Table("games")
		require.NoError(t, err)
		require.NoError(t, seed.Commit())

		w, err := s.Begin(true)
		require.NoError(t, err)
		tbl, err := w.Table("games")
		require.NoError(t, err)
		require.NoError(t, tbl.Put([]byte("k"), []byte("v")))

		v, found, err := tbl.Get([]byte("k"))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("v"), v)

		r, err := s.Begin(false)
		require.NoError(t, err)
		rt, err := r.Table("games")
		require.NoError(t, err)
		_, found, err = rt.Get([]byte("k"))
		require.NoError(t, err)
		assert.False(t, found)
		require.NoError(t, r.Rollback())

		require.NoError(t, w.Commit())

		r, err = s.Begin(false)
		require.NoError(t, err)
		rt, err = r.Table("games")
		require.NoError(t, err)
		_, found, err = rt.Get([]byte("k"))
		require.NoError(t, err)
		assert.True(t, found)
		require.NoError(t, r.Rollback())
	})
}
