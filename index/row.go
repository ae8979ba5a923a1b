package index

import (
	"encoding/binary"
	"errors"
	"strings"

	"github.com/RogerMarsh/solentware-base-sub000/segment"
)

var (
	// ErrRow reports an index row whose length matches no layout or whose
	// fields are out of range.
	ErrRow = errors.New("malformed index row")
	// ErrValueByte reports an index value containing a zero byte, which
	// the composite row key cannot carry.
	ErrValueByte = errors.New("index value contains a zero byte")
)

const (
	intRowLen    = 6
	listRowLen   = 10
	bitmapRowLen = 11
)

// Row is the decoded form of one secondary index row: which segment, how
// many members, and where the membership lives. Int rows carry their single
// member inline; List and Bitmap rows reference a blob table page.
type Row struct {
	Segment  int
	Kind     segment.Kind
	Count    int
	Relative int
	Blob     uint64
}

// Encode renders the row in its fixed layout.
func (r Row) Encode() []byte {
	switch r.Kind {
	case segment.KindInt:
		out := make([]byte, intRowLen)
		binary.BigEndian.PutUint32(out[0:4], uint32(r.Segment))
		binary.BigEndian.PutUint16(out[4:6], uint16(r.Relative))
		return out
	case segment.KindList:
		out := make([]byte, listRowLen)
		binary.BigEndian.PutUint32(out[0:4], uint32(r.Segment))
		binary.BigEndian.PutUint16(out[4:6], uint16(r.Count))
		binary.BigEndian.PutUint32(out[6:10], uint32(r.Blob))
		return out
	default:
		out := make([]byte, bitmapRowLen)
		binary.BigEndian.PutUint32(out[0:4], uint32(r.Segment))
		out[4] = byte(r.Count >> 16)
		out[5] = byte(r.Count >> 8)
		out[6] = byte(r.Count)
		binary.BigEndian.PutUint32(out[7:11], uint32(r.Blob))
		return out
	}
}

// DecodeRow parses a row, dispatching on the layout length.
func DecodeRow(payload []byte) (Row, error) {
	switch len(payload) {
	case intRowLen:
		return Row{
			Segment:  int(binary.BigEndian.Uint32(payload[0:4])),
			Kind:     segment.KindInt,
			Count:    1,
			Relative: int(binary.BigEndian.Uint16(payload[4:6])),
		}, nil
	case listRowLen:
		r := Row{
			Segment: int(binary.BigEndian.Uint32(payload[0:4])),
			Kind:    segment.KindList,
			Count:   int(binary.BigEndian.Uint16(payload[4:6])),
			Blob:    uint64(binary.BigEndian.Uint32(payload[6:10])),
		}
		if r.Count < 2 {
			return Row{}, ErrRow
		}
		return r, nil
	case bitmapRowLen:
		return Row{
			Segment: int(binary.BigEndian.Uint32(payload[0:4])),
			Kind:    segment.KindBitmap,
			Count:   int(payload[4])<<16 | int(payload[5])<<8 | int(payload[6]),
			Blob:    uint64(binary.BigEndian.Uint32(payload[7:11])),
		}, nil
	default:
		return Row{}, ErrRow
	}
}

// CheckValue rejects values the composite key cannot encode.
func CheckValue(value string) error {
	if strings.IndexByte(value, 0x00) >= 0 {
		return ErrValueByte
	}
	return nil
}

// RowKey builds the composite key for one (value, segment) row. Keys order
// by value first, then numerically by segment.
func RowKey(value string, segmentNumber int) []byte {
	key := make([]byte, 0, len(value)+5)
	key = append(key, value...)
	key = append(key, 0x00)
	return binary.BigEndian.AppendUint32(key, uint32(segmentNumber))
}

// SplitRowKey is the inverse of RowKey.
func SplitRowKey(key []byte) (value string, segmentNumber int, ok bool) {
	if len(key) < 5 || key[len(key)-5] != 0x00 {
		return "", 0, false
	}
	value = string(key[:len(key)-5])
	if strings.IndexByte(value, 0x00) >= 0 {
		return "", 0, false
	}
	return value, int(binary.BigEndian.Uint32(key[len(key)-4:])), true
}

// ValuePrefix returns the key prefix shared by every row of one exact
// value.
func ValuePrefix(value string) []byte {
	prefix := make([]byte, 0, len(value)+1)
	prefix = append(prefix, value...)
	return append(prefix, 0x00)
}
