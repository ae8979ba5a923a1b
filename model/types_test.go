package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGeometry(t *testing.T) {
	geo := DefaultGeometry()
	require.NoError(t, geo.Validate())
	assert.Equal(t, 65280, geo.SegmentSize)
	assert.Equal(t, 1024, geo.ConversionLimit)
	assert.Equal(t, 8160, geo.BitmapBytes())
}

func TestGeometryValidate(t *testing.T) {
	tests := []struct {
		name  string
		geo   Geometry
		field string
	}{
		{"zero segment size", Geometry{SegmentSize: 0, ConversionLimit: 1}, "SegmentSize"},
		{"negative segment size", Geometry{SegmentSize: -8, ConversionLimit: 1}, "SegmentSize"},
		{"not a multiple of 8", Geometry{SegmentSize: 12, ConversionLimit: 1}, "SegmentSize"},
		{"over two byte relatives", Geometry{SegmentSize: 65544, ConversionLimit: 1}, "SegmentSize"},
		{"zero limit", Geometry{SegmentSize: 16, ConversionLimit: 0}, "ConversionLimit"},
		{"limit at segment size", Geometry{SegmentSize: 16, ConversionLimit: 16}, "ConversionLimit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.geo.Validate()
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	assert.NoError(t, Geometry{SegmentSize: 16, ConversionLimit: 4}.Validate())
	assert.NoError(t, Geometry{SegmentSize: 65536, ConversionLimit: 65535}.Validate())
}

func TestGeometrySplitJoin(t *testing.T) {
	geo := Geometry{SegmentSize: 16, ConversionLimit: 4}

	seg, rel := geo.Split(0)
	assert.Equal(t, 0, seg)
	assert.Equal(t, 0, rel)

	seg, rel = geo.Split(15)
	assert.Equal(t, 0, seg)
	assert.Equal(t, 15, rel)

	seg, rel = geo.Split(16)
	assert.Equal(t, 1, seg)
	assert.Equal(t, 0, rel)

	for _, record := range []int{0, 1, 15, 16, 17, 160, 65279} {
		seg, rel := geo.Split(record)
		assert.Equal(t, record, geo.Join(seg, rel), "record %d", record)
	}
}

func TestErrorMessages(t *testing.T) {
	cfg := &ConfigurationError{Field: "SegmentSize", Value: 12, Reason: "must be a positive multiple of 8"}
	assert.Equal(t, "configuration: SegmentSize=12 must be a positive multiple of 8", cfg.Error())

	mismatch := NewOriginMismatch("and", "db-a", "db-b")
	assert.Equal(t, "and: origin mismatch: want db-a, got db-b", mismatch.Error())
	assert.Nil(t, mismatch.Unwrap())

	missing := NewConsistency("games__white", "queen", nil)
	assert.Equal(t, "segment record missing: games__white[queen]", missing.Error())

	unsupported := &NotSupportedError{Op: "seek", Reason: "int segments have one member"}
	assert.Equal(t, "seek: not supported: int segments have one member", unsupported.Error())
}
