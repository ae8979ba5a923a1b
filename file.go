package solentbase

import (
	"fmt"
	"sort"
	"time"

	"github.com/RogerMarsh/solentware-base-sub000/alloc"
	"github.com/RogerMarsh/solentware-base-sub000/index"
	"github.com/RogerMarsh/solentware-base-sub000/recordset"
	"github.com/RogerMarsh/solentware-base-sub000/segment"
	"github.com/RogerMarsh/solentware-base-sub000/store"
)

// Record is one primary row plus the index values derived from it. Fields
// maps a declared field name to the values the record is indexed under;
// a field may carry any number of values, including none.
type Record struct {
	Data   []byte
	Fields map[string][]string
}

type fieldTables struct {
	rows    store.Table
	lists   store.Table
	bitmaps store.Table
}

// File is the handle for one declared file within one transaction. It
// maintains the primary table, the existence bitmap, slot and blob-page
// reuse, and one secondary index per field. Like the Database it belongs
// to, a File is single threaded.
type File struct {
	db     *Database
	name   string
	fields []string

	data    store.Table
	exist   *alloc.ExistenceBitmap
	free    *alloc.FreeSlotTracker
	pages   *alloc.FreeBlobPages
	tables  map[string]fieldTables
	indexes map[string]*index.Secondary
}

func (db *Database) openFile(spec fileSpec) (*File, error) {
	data, err := db.txn.Table(spec.name)
	if err != nil {
		return nil, err
	}
	existTbl, err := db.txn.Table(existTableName(spec.name))
	if err != nil {
		return nil, err
	}
	control, err := db.txn.Table(controlTableName(spec.name))
	if err != nil {
		return nil, err
	}

	exist := alloc.NewExistenceBitmap(db.geo, existTableName(spec.name), existTbl)
	f := &File{
		db:      db,
		name:    spec.name,
		fields:  append([]string(nil), spec.fields...),
		data:    data,
		exist:   exist,
		free:    alloc.NewFreeSlotTracker(db.geo, control, exist),
		pages:   alloc.NewFreeBlobPages(control),
		tables:  make(map[string]fieldTables, len(spec.fields)),
		indexes: make(map[string]*index.Secondary, len(spec.fields)),
	}
	for _, field := range spec.fields {
		rows, err := db.txn.Table(rowsTableName(spec.name, field))
		if err != nil {
			return nil, err
		}
		lists, err := db.txn.Table(listTableName(spec.name, field))
		if err != nil {
			return nil, err
		}
		bitmaps, err := db.txn.Table(bitmapTableName(spec.name, field))
		if err != nil {
			return nil, err
		}
		x, err := index.NewSecondary(index.Config{
			Geometry:  db.geo,
			Name:      rowsTableName(spec.name, field),
			Rows:      rows,
			Lists:     lists,
			Bitmaps:   bitmaps,
			Pages:     f.pages,
			CacheSize: db.cacheSize,
			Logger:    db.log.Logger,
		})
		if err != nil {
			return nil, err
		}
		f.tables[field] = fieldTables{rows: rows, lists: lists, bitmaps: bitmaps}
		f.indexes[field] = x
	}
	return f, nil
}

// Name returns the file name.
func (f *File) Name() string { return f.name }

// Fields returns the declared field names in declaration order.
func (f *File) Fields() []string {
	return append([]string(nil), f.fields...)
}

// Origin identifies this file within this database instance. Record sets
// built from the file carry it, and set algebra refuses to mix origins.
func (f *File) Origin() recordset.Origin {
	return recordset.Origin{Database: f.db.id, Table: f.name}
}

// EmptySet returns an empty record set stamped with the file's origin, the
// usual accumulator for set algebra over Find results.
func (f *File) EmptySet() *recordset.RecordSet {
	return recordset.New(f.db.geo, f.Origin())
}

func (f *File) index(field string) (*index.Secondary, error) {
	x, ok := f.indexes[field]
	if !ok {
		return nil, fmt.Errorf("file %q, field %q: %w", f.name, field, ErrUnknownField)
	}
	return x, nil
}

func (f *File) checkFields(rec Record) error {
	for field := range rec.Fields {
		if _, ok := f.indexes[field]; !ok {
			return fmt.Errorf("file %q, field %q: %w", f.name, field, ErrUnknownField)
		}
	}
	return nil
}

// Put stores a record and indexes it under every field value. The record
// number is the lowest freed slot when one is reusable, otherwise the next
// appended number.
func (f *File) Put(rec Record) (int, error) {
	start := time.Now()
	record, err := f.put(rec)
	f.db.metrics.RecordPut(time.Since(start), err)
	f.db.log.LogPut(f.name, record, err)
	return record, err
}

func (f *File) put(rec Record) (int, error) {
	if !f.db.writable {
		return 0, store.ErrReadOnly
	}
	if err := f.checkFields(rec); err != nil {
		return 0, err
	}

	record, ok, err := f.free.LowestFreed()
	if err != nil {
		return 0, err
	}
	if ok {
		if err := f.data.Put(store.AppendKey(uint64(record)), rec.Data); err != nil {
			return 0, err
		}
	} else {
		n, err := f.data.Append(rec.Data)
		if err != nil {
			return 0, err
		}
		record = int(n)
	}
	if err := f.exist.Set(record); err != nil {
		return 0, err
	}
	for field, values := range rec.Fields {
		x := f.indexes[field]
		for _, value := range values {
			if err := x.Put(value, record); err != nil {
				return 0, err
			}
		}
	}
	return record, nil
}

// Get returns the record's data with a found flag.
func (f *File) Get(record int) ([]byte, bool, error) {
	if record < 0 {
		return nil, false, nil
	}
	return f.data.Get(store.AppendKey(uint64(record)))
}

// Exists reports whether the record number is allocated.
func (f *File) Exists(record int) (bool, error) {
	if record < 0 {
		return false, nil
	}
	return f.exist.IsSet(record)
}

// Count returns the number of allocated records.
func (f *File) Count() (int, error) {
	return f.exist.Count()
}

// Delete removes a record and its index entries. rec supplies the field
// values the record was indexed under; there is no reverse lookup from a
// record number to its values. Deleting an absent record reports false and
// touches nothing.
func (f *File) Delete(record int, rec Record) (bool, error) {
	start := time.Now()
	deleted, err := f.delete(record, rec)
	f.db.metrics.RecordDelete(time.Since(start), err)
	f.db.log.LogDelete(f.name, record, err)
	return deleted, err
}

func (f *File) delete(record int, rec Record) (bool, error) {
	if !f.db.writable {
		return false, store.ErrReadOnly
	}
	if err := f.checkFields(rec); err != nil {
		return false, err
	}
	present, err := f.Exists(record)
	if err != nil || !present {
		return false, err
	}

	for field, values := range rec.Fields {
		x := f.indexes[field]
		for _, value := range values {
			if err := x.Delete(value, record); err != nil {
				return false, err
			}
		}
	}
	if err := f.data.Delete(store.AppendKey(uint64(record))); err != nil {
		return false, err
	}
	if err := f.exist.Clear(record); err != nil {
		return false, err
	}
	if err := f.free.NoteFreed(record); err != nil {
		return false, err
	}
	return true, nil
}

// Update rewrites a record's data and reconciles its index entries: values
// only in old are removed, values only in new are added, values in both
// stay untouched. Updating an absent record reports false and touches
// nothing.
func (f *File) Update(record int, old, new Record) (bool, error) {
	start := time.Now()
	updated, err := f.update(record, old, new)
	f.db.metrics.RecordUpdate(time.Since(start), err)
	f.db.log.LogUpdate(f.name, record, err)
	return updated, err
}

func (f *File) update(record int, old, new Record) (bool, error) {
	if !f.db.writable {
		return false, store.ErrReadOnly
	}
	if err := f.checkFields(old); err != nil {
		return false, err
	}
	if err := f.checkFields(new); err != nil {
		return false, err
	}
	present, err := f.Exists(record)
	if err != nil || !present {
		return false, err
	}

	if err := f.data.Put(store.AppendKey(uint64(record)), new.Data); err != nil {
		return false, err
	}
	for _, field := range f.fields {
		removed, added := diffValues(old.Fields[field], new.Fields[field])
		x := f.indexes[field]
		for _, value := range removed {
			if err := x.Delete(value, record); err != nil {
				return false, err
			}
		}
		for _, value := range added {
			if err := x.Put(value, record); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

// diffValues reports the values only in old and the values only in new,
// each deduplicated and sorted.
func diffValues(old, new []string) (removed, added []string) {
	oldSet := stringSet(old)
	newSet := stringSet(new)
	for v := range oldSet {
		if !newSet[v] {
			removed = append(removed, v)
		}
	}
	for v := range newSet {
		if !oldSet[v] {
			added = append(added, v)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	return removed, added
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// Find materialises every record indexed under value for field into a
// record set stamped with the file's origin.
func (f *File) Find(field, value string) (*recordset.RecordSet, error) {
	start := time.Now()
	set, err := f.find(field, value)
	f.db.metrics.RecordFind(time.Since(start), err)
	count := 0
	if set != nil {
		count = set.Count()
	}
	f.db.log.LogFind(f.name, field, value, count, err)
	return set, err
}

func (f *File) find(field, value string) (*recordset.RecordSet, error) {
	x, err := f.index(field)
	if err != nil {
		return nil, err
	}
	return x.ReadSet(f.Origin(), value)
}

// CountValue sums the member counts recorded for value without
// materialising any segment blobs.
func (f *File) CountValue(field, value string) (int, error) {
	x, err := f.index(field)
	if err != nil {
		return 0, err
	}
	return x.CountFor(value)
}

// AllRecords returns the existence bitmap as a record set: every allocated
// record number, stamped with the file's origin.
func (f *File) AllRecords() (*recordset.RecordSet, error) {
	set := f.EmptySet()
	err := f.exist.Walk(func(_ int, bm *segment.Bitmap) error {
		if bm.Count() == 0 {
			return nil
		}
		set.SetSegment(bm)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// Cursor returns a cursor over one field's index in (value, record) order.
func (f *File) Cursor(field string) (*index.SecondaryCursor, error) {
	x, err := f.index(field)
	if err != nil {
		return nil, err
	}
	return x.Cursor()
}

// RecordCursor returns a cursor over the file's records in record-number
// order.
func (f *File) RecordCursor() (*index.PrimaryCursor, error) {
	return index.NewPrimaryCursor(f.db.geo, f.name, f.data, f.exist)
}

// IndexStats returns the maintenance counters of one field's index.
func (f *File) IndexStats(field string) (index.Stats, error) {
	x, err := f.index(field)
	if err != nil {
		return index.Stats{}, err
	}
	return x.Stats(), nil
}
