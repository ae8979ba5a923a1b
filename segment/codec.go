package segment

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/RogerMarsh/solentware-base-sub000/model"
)

// ErrPayload reports a stored segment payload that cannot be decoded.
var ErrPayload = errors.New("malformed segment payload")

// Kind discriminates the stored representation of a segment.
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindList
	KindBitmap
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindList:
		return "list"
	case KindBitmap:
		return "bitmap"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Decode materialises a stored payload into the representation named by
// kind.
func Decode(geo model.Geometry, number int, key string, kind Kind, payload []byte) (Segment, error) {
	switch kind {
	case KindInt:
		return DecodeInt(geo, number, key, payload)
	case KindList:
		return DecodeList(geo, number, key, payload)
	case KindBitmap:
		return DecodeBitmap(geo, number, key, payload)
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrPayload, kind)
	}
}

// DecodeInt materialises a 2-byte big-endian single record number.
func DecodeInt(geo model.Geometry, number int, key string, payload []byte) (*Int, error) {
	if len(payload) != 2 {
		return nil, fmt.Errorf("%w: int wants 2 bytes, got %d", ErrPayload, len(payload))
	}
	rel := int(binary.BigEndian.Uint16(payload))
	if rel >= geo.SegmentSize {
		return nil, fmt.Errorf("%w: record %d outside segment of %d slots", ErrPayload, rel, geo.SegmentSize)
	}
	return NewInt(geo, number, key, rel), nil
}

// DecodeList materialises a strictly ascending sequence of 2-byte big-endian
// record numbers.
func DecodeList(geo model.Geometry, number int, key string, payload []byte) (*List, error) {
	if len(payload) == 0 || len(payload)%2 != 0 {
		return nil, fmt.Errorf("%w: list wants a positive even byte count, got %d", ErrPayload, len(payload))
	}
	s := &List{geo: geo, number: number, key: key, records: make([]uint16, len(payload)/2)}
	for i := range s.records {
		s.records[i] = binary.BigEndian.Uint16(payload[2*i:])
		if int(s.records[i]) >= geo.SegmentSize {
			return nil, fmt.Errorf("%w: record %d outside segment of %d slots", ErrPayload, s.records[i], geo.SegmentSize)
		}
		if i > 0 && s.records[i] <= s.records[i-1] {
			return nil, fmt.Errorf("%w: list not strictly ascending at offset %d", ErrPayload, 2*i)
		}
	}
	return s, nil
}

// DecodeBitmap materialises a SegmentSize/8 byte bitmap.
func DecodeBitmap(geo model.Geometry, number int, key string, payload []byte) (*Bitmap, error) {
	if len(payload) != geo.BitmapBytes() {
		return nil, fmt.Errorf("%w: bitmap wants %d bytes, got %d", ErrPayload, geo.BitmapBytes(), len(payload))
	}
	return NewBitmap(geo, number, key, payload), nil
}

// FromMembers builds the minimal representation holding the given relative
// record numbers: Int for one, List up to the conversion limit, Bitmap
// beyond it.
func FromMembers(geo model.Geometry, number int, key string, relative ...int) Segment {
	list := NewList(geo, number, key, relative...)
	return list.Normalize()
}
