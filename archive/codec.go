package archive

import (
	"encoding/binary"
	"fmt"

	"github.com/RogerMarsh/solentware-base-sub000/store"
)

// row is one table entry captured by a guard.
type row struct {
	Key   []byte
	Value []byte
}

// encodeTable lays out one table image: append sequence, row count, then
// length-prefixed key/value pairs in cursor order.
func encodeTable(sequence uint64, rows []row) []byte {
	size := 12
	for _, r := range rows {
		size += 8 + len(r.Key) + len(r.Value)
	}
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint64(buf, sequence)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rows)))
	for _, r := range rows {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Key)))
		buf = append(buf, r.Key...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Value)))
		buf = append(buf, r.Value...)
	}
	return buf
}

// decodeTable is the inverse of encodeTable.
func decodeTable(data []byte) (uint64, []row, error) {
	if len(data) < 12 {
		return 0, nil, fmt.Errorf("%w: table image header", ErrFormat)
	}
	sequence := binary.LittleEndian.Uint64(data)
	count := int(binary.LittleEndian.Uint32(data[8:]))
	data = data[12:]

	// Two length prefixes is the least a row can occupy.
	if count > len(data)/8 {
		return 0, nil, fmt.Errorf("%w: %d rows in %d bytes", ErrFormat, count, len(data))
	}
	rows := make([]row, 0, count)
	next := func() ([]byte, error) {
		if len(data) < 4 {
			return nil, fmt.Errorf("%w: table image truncated", ErrFormat)
		}
		n := int(binary.LittleEndian.Uint32(data))
		if len(data) < 4+n {
			return nil, fmt.Errorf("%w: table image truncated", ErrFormat)
		}
		field := data[4 : 4+n]
		data = data[4+n:]
		return field, nil
	}
	for i := 0; i < count; i++ {
		key, err := next()
		if err != nil {
			return 0, nil, err
		}
		value, err := next()
		if err != nil {
			return 0, nil, err
		}
		rows = append(rows, row{Key: key, Value: value})
	}
	if len(data) != 0 {
		return 0, nil, fmt.Errorf("%w: %d trailing bytes in table image", ErrFormat, len(data))
	}
	return sequence, rows, nil
}

// readTable captures a table's rows and append sequence.
func readTable(tbl store.Table) (uint64, []row, error) {
	sequence, err := tbl.Sequence()
	if err != nil {
		return 0, nil, err
	}
	cur, err := tbl.Cursor()
	if err != nil {
		return 0, nil, err
	}
	defer cur.Close()

	var rows []row
	for k, v, ok := cur.First(); ok; k, v, ok = cur.Next() {
		key := make([]byte, len(k))
		copy(key, k)
		value := make([]byte, len(v))
		copy(value, v)
		rows = append(rows, row{Key: key, Value: value})
	}
	if err := cur.Err(); err != nil {
		return 0, nil, err
	}
	return sequence, rows, nil
}

// clearTable removes every row. Keys are collected first so no deletion
// happens under a live cursor.
func clearTable(tbl store.Table) error {
	cur, err := tbl.Cursor()
	if err != nil {
		return err
	}
	var keys [][]byte
	for k, _, ok := cur.First(); ok; k, _, ok = cur.Next() {
		key := make([]byte, len(k))
		copy(key, k)
		keys = append(keys, key)
	}
	if err := cur.Err(); err != nil {
		cur.Close()
		return err
	}
	if err := cur.Close(); err != nil {
		return err
	}
	for _, key := range keys {
		if err := tbl.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
