package model

import "fmt"

const (
	// DefaultSegmentSize matches the DPT table B page capacity of 8160
	// bytes, 65280 record bits per segment.
	DefaultSegmentSize = 8160 * 8

	// DefaultConversionLimit is the member count above which a bitmap is
	// smaller than a list of 2-byte record numbers.
	DefaultConversionLimit = 1024
)

// Geometry fixes the shape of the segmented record-number space: how many
// record slots one segment spans, and the member count at which a list
// representation is abandoned for a bitmap.
type Geometry struct {
	// SegmentSize is the number of record slots per segment. It must be a
	// positive multiple of 8 (bitmaps are byte arrays) and at most 65536
	// (record numbers within a segment are stored as 2 bytes).
	SegmentSize int

	// ConversionLimit is the inclusive upper bound on list membership.
	// A segment holding more members is represented as a bitmap.
	ConversionLimit int
}

// DefaultGeometry returns the DPT-compatible geometry.
func DefaultGeometry() Geometry {
	return Geometry{
		SegmentSize:     DefaultSegmentSize,
		ConversionLimit: DefaultConversionLimit,
	}
}

// Validate reports a ConfigurationError if the geometry is unusable.
func (g Geometry) Validate() error {
	if g.SegmentSize <= 0 || g.SegmentSize%8 != 0 {
		return &ConfigurationError{
			Field:  "SegmentSize",
			Value:  g.SegmentSize,
			Reason: "must be a positive multiple of 8",
		}
	}
	if g.SegmentSize > 65536 {
		return &ConfigurationError{
			Field:  "SegmentSize",
			Value:  g.SegmentSize,
			Reason: "record numbers within a segment must fit 2 bytes",
		}
	}
	if g.ConversionLimit < 1 || g.ConversionLimit >= g.SegmentSize {
		return &ConfigurationError{
			Field:  "ConversionLimit",
			Value:  g.ConversionLimit,
			Reason: fmt.Sprintf("must be in [1, %d)", g.SegmentSize),
		}
	}
	return nil
}

// BitmapBytes returns the byte length of one segment bitmap.
func (g Geometry) BitmapBytes() int { return g.SegmentSize / 8 }

// Split resolves an absolute record number into its segment number and the
// record number within that segment.
func (g Geometry) Split(record int) (segment, relative int) {
	return record / g.SegmentSize, record % g.SegmentSize
}

// Join is the inverse of Split.
func (g Geometry) Join(segment, relative int) int {
	return segment*g.SegmentSize + relative
}
