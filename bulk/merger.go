package bulk

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/RogerMarsh/solentware-base-sub000/index"
	"github.com/RogerMarsh/solentware-base-sub000/model"
	"github.com/RogerMarsh/solentware-base-sub000/segment"
)

// Config wires a Merger to the indexes it feeds.
type Config struct {
	Geometry model.Geometry
	// Indexes maps field names to the secondary index written on flush.
	Indexes map[string]*index.Secondary
	// HighSegment is the highest populated segment when the load starts,
	// -1 for an empty table. A flush of this segment merges with the rows
	// already on disk.
	HighSegment int
	Logger      *slog.Logger
}

// Stats counts what a load did.
type Stats struct {
	Added   int64
	Flushes int64
	Rows    int64
	Splices int64
}

// Merger buffers index additions and writes them segment by segment.
// Records are expected in ascending order, the order a bulk load appends
// them; within one segment any order is accepted.
type Merger struct {
	geo     model.Geometry
	targets map[string]*index.Secondary
	high    int
	log     *slog.Logger
	// current is the segment being buffered, -1 when nothing is.
	current int
	// resumed is set once a chunk has been finished: rows written by an
	// earlier chunk may be revisited, so every later flush splices.
	resumed bool
	buffers map[string]map[string][]int
	stats   Stats
}

// NewMerger builds a merger for one deferred-update run.
func NewMerger(cfg Config) (*Merger, error) {
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Indexes) == 0 {
		return nil, &model.ConfigurationError{Field: "Indexes", Value: "empty", Reason: "a load needs at least one index"}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Merger{
		geo:     cfg.Geometry,
		targets: cfg.Indexes,
		high:    cfg.HighSegment,
		log:     log,
		current: -1,
		buffers: make(map[string]map[string][]int),
	}, nil
}

// Stats returns a snapshot of the load counters.
func (m *Merger) Stats() Stats { return m.stats }

// Add buffers one index addition. Crossing into a higher segment flushes
// the buffered one first.
func (m *Merger) Add(field, value string, record int) error {
	if _, ok := m.targets[field]; !ok {
		return &model.NotSupportedError{Op: "bulk add", Reason: fmt.Sprintf("no index for field %q", field)}
	}
	if err := index.CheckValue(value); err != nil {
		return err
	}
	segNo, rel := m.geo.Split(record)
	if rel < 0 {
		return &model.NotSupportedError{Op: "bulk add", Reason: "negative record number"}
	}

	switch {
	case m.current < 0:
		m.current = segNo
	case segNo < m.current:
		return &model.NotSupportedError{Op: "bulk add", Reason: "record numbers must not move to a lower segment"}
	case segNo > m.current:
		if err := m.flush(m.current); err != nil {
			return err
		}
		m.current = segNo
	}

	values := m.buffers[field]
	if values == nil {
		values = make(map[string][]int)
		m.buffers[field] = values
	}
	values[value] = append(values[value], rel)
	m.stats.Added++
	return nil
}

// Finish flushes the final partial segment. The merger stays usable: a
// further chunk of additions may follow, and its flushes will splice with
// the rows this one wrote.
func (m *Merger) Finish() error {
	if m.current >= 0 {
		if err := m.flush(m.current); err != nil {
			return err
		}
		m.current = -1
	}
	m.resumed = true
	return nil
}

// spliceNeeded reports whether rows for segNo may already exist on disk.
func (m *Merger) spliceNeeded(segNo int) bool {
	return segNo == m.high || m.resumed
}

// flush writes every buffered (field, value) for segNo and clears the
// buffers. Fields and values go out in sorted order so repeated loads
// allocate blob pages identically.
func (m *Merger) flush(segNo int) error {
	rows := 0
	for _, field := range sortedKeys(m.buffers) {
		x := m.targets[field]
		values := m.buffers[field]
		for _, value := range sortedKeys(values) {
			s := segment.FromMembers(m.geo, segNo, value, values[value]...)
			if m.spliceNeeded(segNo) {
				spliced, err := x.SpliceSegment(s)
				if err != nil {
					return err
				}
				if spliced {
					m.stats.Splices++
				}
			} else if err := x.InsertSegment(s); err != nil {
				return err
			}
			rows++
		}
	}
	clear(m.buffers)
	m.stats.Rows += int64(rows)
	m.stats.Flushes++
	m.log.Debug("deferred segment flushed",
		slog.Int("segment", segNo),
		slog.Int("rows", rows),
		slog.Bool("splice", m.spliceNeeded(segNo)),
	)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
