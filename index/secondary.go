package index

import (
	"bytes"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/RogerMarsh/solentware-base-sub000/alloc"
	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/recordset"
	"github.com/RogerMarsh/solentware-base-sub000/segment"
	"github.com/RogerMarsh/solentware-base-sub000/store"
)

// DefaultCacheSize is the per-index segment cache capacity.
const DefaultCacheSize = 128

// Config wires one secondary index to its tables.
type Config struct {
	Geometry model.Geometry
	// Name identifies the index in errors and logs.
	Name string
	// Rows holds the composite-key index rows.
	Rows store.Table
	// Lists and Bitmaps hold the referenced payload blobs.
	Lists   store.Table
	Bitmaps store.Table
	// Pages recycles freed blob pages; nil disables reuse.
	Pages     *alloc.FreeBlobPages
	CacheSize int
	Logger    *slog.Logger
}

// Stats counts what maintenance did to one index.
type Stats struct {
	Puts         int64
	Deletes      int64
	IntToList    int64
	ListToBitmap int64
	BitmapToList int64
	ListToInt    int64
	BitmapToInt  int64
	BlobReuses   int64
	CacheHits    int64
	CacheMisses  int64
}

// Secondary is one inverted index: maintenance, materialisation and cursor
// construction. It is bound to its tables for one unit of work and is not
// safe for concurrent use.
type Secondary struct {
	geo   model.Geometry
	name  string
	rows  store.Table
	lists store.Table
	bits  store.Table
	pages *alloc.FreeBlobPages
	cache *lru.Cache[string, segment.Segment]
	log   *slog.Logger
	stats Stats
}

// NewSecondary builds the index access object for one unit of work.
func NewSecondary(cfg Config) (*Secondary, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, segment.Segment](size)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Secondary{
		geo:   cfg.Geometry,
		name:  cfg.Name,
		rows:  cfg.Rows,
		lists: cfg.Lists,
		bits:  cfg.Bitmaps,
		pages: cfg.Pages,
		cache: cache,
		log:   log,
	}, nil
}

// Name returns the index name.
func (x *Secondary) Name() string { return x.name }

// Geometry returns the segmented record-number geometry.
func (x *Secondary) Geometry() model.Geometry { return x.geo }

// Stats returns a snapshot of the maintenance counters.
func (x *Secondary) Stats() Stats { return x.stats }

func (x *Secondary) blobTable(kind segment.Kind) store.Table {
	if kind == segment.KindList {
		return x.lists
	}
	return x.bits
}

func (x *Secondary) readBlob(kind segment.Kind, page uint64) ([]byte, error) {
	key := store.AppendKey(page)
	payload, found, err := x.blobTable(kind).Get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, model.NewConsistency(x.name, string(key), nil)
	}
	return payload, nil
}

// allocBlob stores payload on a recycled page when one is free, otherwise
// on a fresh appended page.
func (x *Secondary) allocBlob(kind segment.Kind, payload []byte) (uint64, error) {
	if x.pages != nil {
		var page uint64
		var ok bool
		var err error
		if kind == segment.KindList {
			page, ok, err = x.pages.TakeList()
		} else {
			page, ok, err = x.pages.TakeBitmap()
		}
		if err != nil {
			return 0, err
		}
		if ok {
			x.stats.BlobReuses++
			return page, x.blobTable(kind).Put(store.AppendKey(page), payload)
		}
	}
	return x.blobTable(kind).Append(payload)
}

func (x *Secondary) freeBlob(kind segment.Kind, page uint64) error {
	if err := x.blobTable(kind).Delete(store.AppendKey(page)); err != nil {
		return err
	}
	if x.pages == nil {
		return nil
	}
	if kind == segment.KindList {
		return x.pages.NoteList(page)
	}
	return x.pages.NoteBitmap(page)
}

// materialize turns a row into a private Segment the caller may mutate.
// Decoded segments are cached per row key; the cache holds the pristine
// decode and hands out copies.
func (x *Secondary) materialize(value string, row Row) (segment.Segment, error) {
	key := string(RowKey(value, row.Segment))
	if s, ok := x.cache.Get(key); ok {
		x.stats.CacheHits++
		return s.Copy(), nil
	}
	x.stats.CacheMisses++

	var s segment.Segment
	switch row.Kind {
	case segment.KindInt:
		s = segment.NewInt(x.geo, row.Segment, value, row.Relative)
	case segment.KindList:
		payload, err := x.readBlob(row.Kind, row.Blob)
		if err != nil {
			return nil, err
		}
		list, err := segment.DecodeList(x.geo, row.Segment, value, payload)
		if err != nil {
			return nil, model.NewConsistency(x.name, key, err)
		}
		s = list
	default:
		payload, err := x.readBlob(row.Kind, row.Blob)
		if err != nil {
			return nil, err
		}
		bm, err := segment.DecodeBitmap(x.geo, row.Segment, value, payload)
		if err != nil {
			return nil, model.NewConsistency(x.name, key, err)
		}
		s = bm
	}
	if s.Count() != row.Count {
		return nil, model.NewConsistency(x.name, key, nil)
	}
	x.cache.Add(key, s)
	return s.Copy(), nil
}

func kindOf(s segment.Segment) segment.Kind {
	switch s.(type) {
	case *segment.Int:
		return segment.KindInt
	case *segment.List:
		return segment.KindList
	default:
		return segment.KindBitmap
	}
}

// Put indexes record under value. Indexing an already-present member is a
// no-op.
func (x *Secondary) Put(value string, record int) error {
	if err := CheckValue(value); err != nil {
		return err
	}
	segNo, rel := x.geo.Split(record)
	if rel < 0 {
		return &model.NotSupportedError{Op: "index put", Reason: "negative record number"}
	}
	key := RowKey(value, segNo)

	payload, found, err := x.rows.Get(key)
	if err != nil {
		return err
	}
	if !found {
		x.stats.Puts++
		row := Row{Segment: segNo, Kind: segment.KindInt, Count: 1, Relative: rel}
		return x.rows.Put(key, row.Encode())
	}

	row, err := DecodeRow(payload)
	if err != nil {
		return model.NewConsistency(x.name, string(key), err)
	}
	if row.Segment != segNo {
		return model.NewConsistency(x.name, string(key), nil)
	}

	var updated segment.Segment
	if row.Kind == segment.KindInt {
		if row.Relative == rel {
			return nil
		}
		updated = segment.NewList(x.geo, segNo, value, row.Relative, rel)
	} else {
		s, err := x.materialize(value, row)
		if err != nil {
			return err
		}
		switch s := s.(type) {
		case *segment.List:
			if !s.Insert(record) {
				return nil
			}
		case *segment.Bitmap:
			if !s.Set(record) {
				return nil
			}
		}
		updated = s
	}
	x.stats.Puts++
	return x.writeRow(key, value, &row, updated.Normalize())
}

// Delete removes record from value's membership, converting the row back
// down through the representations as the count shrinks. Removing an absent
// member is a no-op.
func (x *Secondary) Delete(value string, record int) error {
	if err := CheckValue(value); err != nil {
		return err
	}
	segNo, rel := x.geo.Split(record)
	if rel < 0 {
		return nil
	}
	key := RowKey(value, segNo)

	payload, found, err := x.rows.Get(key)
	if err != nil || !found {
		return err
	}
	row, err := DecodeRow(payload)
	if err != nil {
		return model.NewConsistency(x.name, string(key), err)
	}
	if row.Segment != segNo {
		return model.NewConsistency(x.name, string(key), nil)
	}

	var updated segment.Segment
	if row.Kind == segment.KindInt {
		if row.Relative != rel {
			return nil
		}
		updated = nil
	} else {
		s, err := x.materialize(value, row)
		if err != nil {
			return err
		}
		switch s := s.(type) {
		case *segment.List:
			if !s.Remove(record) {
				return nil
			}
		case *segment.Bitmap:
			if !s.Clear(record) {
				return nil
			}
		}
		updated = s.Normalize()
	}
	x.stats.Deletes++
	return x.writeRow(key, value, &row, updated)
}

// writeRow reconciles storage with the updated segment: same-kind rows
// overwrite their blob in place, kind changes free and allocate blob pages,
// an empty update deletes the row.
func (x *Secondary) writeRow(key []byte, value string, old *Row, updated segment.Segment) error {
	defer x.cache.Remove(string(key))

	if updated == nil || updated.Count() == 0 {
		if old != nil && old.Kind != segment.KindInt {
			if err := x.freeBlob(old.Kind, old.Blob); err != nil {
				return err
			}
		}
		return x.rows.Delete(key)
	}

	kind := kindOf(updated)
	row := Row{Segment: updated.Number(), Kind: kind, Count: updated.Count()}

	switch kind {
	case segment.KindInt:
		record, _ := updated.First()
		_, row.Relative = x.geo.Split(record)
		if old != nil && old.Kind != segment.KindInt {
			if err := x.freeBlob(old.Kind, old.Blob); err != nil {
				return err
			}
		}
	default:
		payload := updated.Encode()
		if old != nil && old.Kind == kind {
			row.Blob = old.Blob
			if err := x.blobTable(kind).Put(store.AppendKey(row.Blob), payload); err != nil {
				return err
			}
		} else {
			if old != nil && old.Kind != segment.KindInt {
				if err := x.freeBlob(old.Kind, old.Blob); err != nil {
					return err
				}
			}
			page, err := x.allocBlob(kind, payload)
			if err != nil {
				return err
			}
			row.Blob = page
		}
	}

	if old != nil {
		x.noteConversion(old.Kind, kind, value, row.Segment)
	}
	return x.rows.Put(key, row.Encode())
}

func (x *Secondary) noteConversion(from, to segment.Kind, value string, segmentNumber int) {
	if from == to {
		return
	}
	switch {
	case from == segment.KindInt && to == segment.KindList:
		x.stats.IntToList++
	case from == segment.KindList && to == segment.KindBitmap:
		x.stats.ListToBitmap++
	case from == segment.KindBitmap && to == segment.KindList:
		x.stats.BitmapToList++
	case from == segment.KindList && to == segment.KindInt:
		x.stats.ListToInt++
	case from == segment.KindBitmap && to == segment.KindInt:
		x.stats.BitmapToInt++
	}
	x.log.Debug("segment representation converted",
		slog.String("index", x.name),
		slog.String("value", value),
		slog.Int("segment", segmentNumber),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
}

// InsertSegment writes a whole segment's membership as one fresh row. The
// caller warrants that no row exists for (value, segment); bulk loads meet
// that by construction for every segment above the splice segment.
func (x *Secondary) InsertSegment(s segment.Segment) error {
	if err := CheckValue(s.Key()); err != nil {
		return err
	}
	if s.Count() == 0 {
		return nil
	}
	return x.writeRow(RowKey(s.Key(), s.Number()), s.Key(), nil, s.Normalize())
}

// SpliceSegment merges a whole segment's membership into the row already
// holding (value, segment), keeping a single row per pair and reusing the
// existing blob page when the representation allows. Without an existing
// row it degrades to a fresh insert. It reports whether a merge happened.
func (x *Secondary) SpliceSegment(s segment.Segment) (bool, error) {
	if err := CheckValue(s.Key()); err != nil {
		return false, err
	}
	if s.Count() == 0 {
		return false, nil
	}
	key := RowKey(s.Key(), s.Number())
	payload, found, err := x.rows.Get(key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, x.writeRow(key, s.Key(), nil, s.Normalize())
	}
	row, err := DecodeRow(payload)
	if err != nil {
		return false, model.NewConsistency(x.name, string(key), err)
	}
	if row.Segment != s.Number() {
		return false, model.NewConsistency(x.name, string(key), nil)
	}
	existing, err := x.materialize(s.Key(), row)
	if err != nil {
		return false, err
	}
	merged, err := existing.Union(s)
	if err != nil {
		return false, err
	}
	return true, x.writeRow(key, s.Key(), &row, merged.Normalize())
}

// ReadSet materialises every segment indexed under value into a RecordSet
// stamped with origin.
func (x *Secondary) ReadSet(origin recordset.Origin, value string) (*recordset.RecordSet, error) {
	if err := CheckValue(value); err != nil {
		return nil, err
	}
	set := recordset.New(x.geo, origin)
	cur, err := x.rows.Cursor()
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	prefix := ValuePrefix(value)
	for k, v, ok := cur.Seek(prefix); ok && bytes.HasPrefix(k, prefix); k, v, ok = cur.Next() {
		row, err := DecodeRow(v)
		if err != nil {
			return nil, model.NewConsistency(x.name, string(k), err)
		}
		s, err := x.materialize(value, row)
		if err != nil {
			return nil, err
		}
		set.SetSegment(s)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// CountFor sums the member counts of every row under value without
// materialising any blobs.
func (x *Secondary) CountFor(value string) (int, error) {
	if err := CheckValue(value); err != nil {
		return 0, err
	}
	cur, err := x.rows.Cursor()
	if err != nil {
		return 0, err
	}
	defer cur.Close()

	total := 0
	prefix := ValuePrefix(value)
	for k, v, ok := cur.Seek(prefix); ok && bytes.HasPrefix(k, prefix); k, v, ok = cur.Next() {
		row, err := DecodeRow(v)
		if err != nil {
			return 0, model.NewConsistency(x.name, string(k), err)
		}
		total += row.Count
	}
	if err := cur.Err(); err != nil {
		return 0, err
	}
	return total, nil
}
