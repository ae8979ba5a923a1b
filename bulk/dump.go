package bulk

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/RogerMarsh/solentware-base-sub000/index"
)

var (
	// ErrDumpEntry reports a dump entry whose fields are out of range or
	// whose relatives are not strictly ascending.
	ErrDumpEntry = errors.New("malformed dump entry")
	// ErrDumpOrder reports entries written out of (value, segment) order.
	ErrDumpOrder = errors.New("dump entries out of order")
)

// DumpEntry is one sorted-chunk record: every buffered record-in-segment
// for one (value, segment) pair.
type DumpEntry struct {
	Value     string
	Segment   int
	Relatives []int
}

// DumpWriter writes one sorted chunk file. Entries are length-prefixed
// binary records and must arrive in strictly ascending (value, segment)
// order, which a per-chunk in-memory sort guarantees.
type DumpWriter struct {
	w       *bufio.Writer
	started bool
	lastVal string
	lastSeg int
	scratch []byte
}

// NewDumpWriter wraps w with a buffered chunk writer.
func NewDumpWriter(w io.Writer) *DumpWriter {
	return &DumpWriter{w: bufio.NewWriter(w)}
}

// Write appends one entry. Relatives must be strictly ascending.
func (d *DumpWriter) Write(value string, segmentNumber int, relatives []int) error {
	if err := index.CheckValue(value); err != nil {
		return err
	}
	if len(value) > 0xFFFF || segmentNumber < 0 || len(relatives) == 0 {
		return ErrDumpEntry
	}
	for i, rel := range relatives {
		if rel < 0 || rel > 0xFFFF {
			return ErrDumpEntry
		}
		if i > 0 && rel <= relatives[i-1] {
			return ErrDumpEntry
		}
	}
	if d.started && (value < d.lastVal || (value == d.lastVal && segmentNumber <= d.lastSeg)) {
		return ErrDumpOrder
	}

	buf := d.scratch[:0]
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(value)))
	buf = append(buf, value...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(segmentNumber))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(relatives)))
	for _, rel := range relatives {
		buf = binary.BigEndian.AppendUint16(buf, uint16(rel))
	}
	d.scratch = buf

	if _, err := d.w.Write(buf); err != nil {
		return err
	}
	d.started, d.lastVal, d.lastSeg = true, value, segmentNumber
	return nil
}

// Flush pushes buffered bytes to the underlying writer.
func (d *DumpWriter) Flush() error { return d.w.Flush() }

// DumpReader reads one chunk file back entry by entry.
type DumpReader struct {
	r *bufio.Reader
}

// NewDumpReader wraps r with a buffered chunk reader.
func NewDumpReader(r io.Reader) *DumpReader {
	return &DumpReader{r: bufio.NewReader(r)}
}

// Next returns the next entry, io.EOF at a clean end of the chunk and
// io.ErrUnexpectedEOF when the chunk breaks off inside an entry.
func (d *DumpReader) Next() (DumpEntry, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		return DumpEntry{}, err
	}
	vlen := int(binary.BigEndian.Uint16(hdr[:]))

	rest := make([]byte, vlen+8)
	if _, err := io.ReadFull(d.r, rest); err != nil {
		return DumpEntry{}, truncated(err)
	}
	value := string(rest[:vlen])
	if index.CheckValue(value) != nil {
		return DumpEntry{}, ErrDumpEntry
	}
	segNo := int(binary.BigEndian.Uint32(rest[vlen:]))
	count := int(binary.BigEndian.Uint32(rest[vlen+4:]))
	if count == 0 || count > 0x10000 {
		return DumpEntry{}, ErrDumpEntry
	}

	body := make([]byte, 2*count)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return DumpEntry{}, truncated(err)
	}
	rels := make([]int, count)
	for i := range rels {
		rels[i] = int(binary.BigEndian.Uint16(body[2*i:]))
		if i > 0 && rels[i] <= rels[i-1] {
			return DumpEntry{}, ErrDumpEntry
		}
	}
	return DumpEntry{Value: value, Segment: segNo, Relatives: rels}, nil
}

// truncated turns the clean-end io.EOF into the mid-entry error shape.
func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
