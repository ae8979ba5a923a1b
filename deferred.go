package solentbase

import (
	"github.com/RogerMarsh/solentware-base-sub000/bulk"
	"github.com/RogerMarsh/solentware-base-sub000/store"
)

// Load is a deferred-update session: records are appended immediately, but
// their index entries are buffered and written once per filled segment plus
// once at Finish. The first flush that reaches the segment that was the
// file's highest at StartLoad merges with the rows already on disk; flushes
// of later segments insert fresh rows.
//
// A Load drives the file's own indexes, so direct Put, Delete and Update
// calls on the file are off limits between StartLoad and Finish; reads are
// fine. Finish leaves the Load usable, a further chunk of records may
// follow and its flushes will splice with what earlier chunks wrote.
type Load struct {
	file     *File
	merger   *bulk.Merger
	records  int
	reported bulk.Stats
}

// StartLoad opens a deferred-update session on the file's open writable
// transaction.
func (f *File) StartLoad() (*Load, error) {
	if !f.db.writable {
		return nil, store.ErrReadOnly
	}
	segments, err := f.exist.Segments()
	if err != nil {
		return nil, err
	}
	merger, err := bulk.NewMerger(bulk.Config{
		Geometry:    f.db.geo,
		Indexes:     f.indexes,
		HighSegment: segments - 1,
		Logger:      f.db.log.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Load{file: f, merger: merger}, nil
}

// Put appends a record, flags its existence and buffers its index entries.
// Loads never reuse freed slots; record numbers ascend from the file's
// append sequence, which is what keeps whole segments together for the
// merge.
func (l *Load) Put(rec Record) (int, error) {
	if err := l.file.checkFields(rec); err != nil {
		return 0, err
	}
	n, err := l.file.data.Append(rec.Data)
	if err != nil {
		return 0, err
	}
	record := int(n)
	if err := l.file.exist.Set(record); err != nil {
		return 0, err
	}
	for field, values := range rec.Fields {
		for _, value := range values {
			if err := l.merger.Add(field, value, record); err != nil {
				return 0, err
			}
		}
	}
	l.records++
	return record, nil
}

// Finish flushes the final partial segment and reports the chunk's
// counters to the metrics collector.
func (l *Load) Finish() error {
	err := l.merger.Finish()
	stats := l.merger.Stats()
	l.file.db.metrics.RecordLoadStats(l.file.name, bulk.Stats{
		Added:   stats.Added - l.reported.Added,
		Flushes: stats.Flushes - l.reported.Flushes,
		Rows:    stats.Rows - l.reported.Rows,
		Splices: stats.Splices - l.reported.Splices,
	})
	l.reported = stats
	l.file.db.log.LogLoad(l.file.name, stats.Added, stats.Flushes, stats.Splices, err)
	return err
}

// Records returns the number of records appended by this load.
func (l *Load) Records() int { return l.records }

// Stats returns the load's cumulative counters.
func (l *Load) Stats() bulk.Stats { return l.merger.Stats() }
