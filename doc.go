// Package solentbase provides a segmented inverted-index engine for
// record-oriented data over plain key-value storage.
//
// Records are sequential integer numbers carrying opaque data. Each
// declared field keeps an inverted index from field value to the set of
// record numbers indexed under it, stored segment by segment: a segment
// covers a fixed slice of record-number space and is encoded as a single
// inline number, a sorted list or a bitmap, whichever is smallest for its
// member count. The engine converts between representations as membership
// grows and shrinks, reusing freed blob pages.
//
// # Quick Start
//
//	st := memstore.New()
//	db, _ := solentbase.Open(st,
//	    solentbase.WithFile("games", "white", "black", "event"),
//	)
//	defer db.Close()
//
//	_ = db.Begin(true)
//	games, _ := db.File("games")
//	n, _ := games.Put(solentbase.Record{
//	    Data: []byte("1. e4 e5 ..."),
//	    Fields: map[string][]string{
//	        "white": {"Carlsen"},
//	        "black": {"Caruana"},
//	    },
//	})
//	_ = db.Commit()
//
//	_ = db.Begin(false)
//	games, _ = db.File("games")
//	set, _ := games.Find("white", "Carlsen")
//	set.Contains(n) // true
//	_ = db.Rollback()
//
// # Record Sets
//
// Find and AllRecords return record sets: ordered segment collections with
// cursor, positional and set-algebra operations. Sets combine only within
// the database instance that created them; the instance identity travels
// with every set as its origin.
//
//	white, _ := games.Find("white", "Carlsen")
//	black, _ := games.Find("black", "Carlsen")
//	either, _ := white.Or(black)
//
// # Bulk Loading
//
// A deferred-update session buffers index entries in memory and writes
// each segment once instead of once per record, splicing the first flushed
// segment into whatever the file already held:
//
//	load, _ := games.StartLoad()
//	for _, rec := range records {
//	    _, _ = load.Put(rec)
//	}
//	_ = load.Finish()
//
// Guard snapshots bracket risky loads: Database.Guard captures every table
// to a local directory, MinIO or S3 sink, and GuardedLoad restores the
// capture when the load fails.
//
// # Storage
//
// The engine runs against the store contract in the store package;
// adapters for an in-memory map, bbolt and pebble live in subpackages.
// All representation choices, byte formats and merge rules are identical
// across adapters.
package solentbase
