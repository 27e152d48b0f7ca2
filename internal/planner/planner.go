package planner

import (
	"fmt"
	"math"

	"bookspool/internal/catalog"
	"bookspool/internal/services"
)

// SourceFile is one downloaded audio unit, immutable once downloaded.
type SourceFile struct {
	Index           int
	SizeBytes       int64
	DurationSeconds float64
}

// Bounds holds the segment sizing policy.
type Bounds struct {
	MaxSegmentBytes   int64
	MinSegmentSeconds float64
	MaxSegmentSeconds float64
}

// DefaultBounds returns the repository defaults: 150 MiB, 60-120 minutes.
func DefaultBounds() Bounds {
	return Bounds{
		MaxSegmentBytes:   150 * 1024 * 1024,
		MinSegmentSeconds: 60 * 60,
		MaxSegmentSeconds: 120 * 60,
	}
}

// EntryKind distinguishes pass-through entries from combination groups.
type EntryKind int

const (
	// PassThrough uses a single source file as a segment without re-encoding.
	PassThrough EntryKind = iota
	// Combine merges the entry's source files into one segment.
	Combine
)

func (k EntryKind) String() string {
	switch k {
	case PassThrough:
		return "pass-through"
	case Combine:
		return "combine"
	default:
		return "unknown"
	}
}

// Entry is one planned segment: a single pass-through file or an ordered
// group of files to combine.
type Entry struct {
	Kind  EntryKind
	Files []SourceFile
}

// DurationSeconds sums the entry's source durations.
func (e Entry) DurationSeconds() float64 {
	var total float64
	for _, f := range e.Files {
		total += f.DurationSeconds
	}
	return total
}

// SizeBytes sums the entry's source sizes.
func (e Entry) SizeBytes() int64 {
	var total int64
	for _, f := range e.Files {
		total += f.SizeBytes
	}
	return total
}

// Stats aggregates the source set a plan was computed from.
type Stats struct {
	FileCount       int
	TotalBytes      int64
	TotalSeconds    float64
	AverageBytes    int64
	AverageSeconds  float64
	CombineRequired bool
}

// Plan is the ordered segment plan for one book.
type Plan struct {
	Entries []Entry
	Stats   Stats
}

// Compute produces the segment plan for an ordered source file sequence.
// It is deterministic: identical inputs yield identical grouping.
func Compute(files []SourceFile, bounds Bounds) (Plan, error) {
	if len(files) == 0 {
		return Plan{}, services.Wrap(services.ErrInput, "planner", "plan", "no source files", nil)
	}

	stats := computeStats(files)

	for _, f := range files {
		if f.SizeBytes > bounds.MaxSegmentBytes {
			return Plan{}, services.Wrap(services.ErrCapacity, "planner", "plan",
				fmt.Sprintf("source file %d is %d bytes, above the %d byte segment ceiling and cannot be split without re-encoding",
					f.Index, f.SizeBytes, bounds.MaxSegmentBytes), nil)
		}
	}

	if allWithinBounds(files, bounds) {
		entries := make([]Entry, 0, len(files))
		for _, f := range files {
			entries = append(entries, Entry{Kind: PassThrough, Files: []SourceFile{f}})
		}
		return Plan{Entries: entries, Stats: stats}, nil
	}

	stats.CombineRequired = true
	entries := greedyCombine(files, bounds)
	return Plan{Entries: entries, Stats: stats}, nil
}

// greedyCombine accumulates files in order, closing the running group when
// adding the next file would exceed either bound. The final partial group is
// flushed unconditionally; a short trailing segment is acceptable.
func greedyCombine(files []SourceFile, bounds Bounds) []Entry {
	var entries []Entry
	var group []SourceFile
	var runningSeconds float64
	var runningBytes int64

	flush := func() {
		if len(group) == 0 {
			return
		}
		entries = append(entries, Entry{Kind: Combine, Files: group})
		group = nil
		runningSeconds = 0
		runningBytes = 0
	}

	for _, f := range files {
		if len(group) > 0 &&
			(runningSeconds+f.DurationSeconds > bounds.MaxSegmentSeconds ||
				runningBytes+f.SizeBytes > bounds.MaxSegmentBytes) {
			flush()
		}
		group = append(group, f)
		runningSeconds += f.DurationSeconds
		runningBytes += f.SizeBytes
	}
	flush()
	return entries
}

func allWithinBounds(files []SourceFile, bounds Bounds) bool {
	for _, f := range files {
		if f.DurationSeconds < bounds.MinSegmentSeconds || f.DurationSeconds > bounds.MaxSegmentSeconds {
			return false
		}
		if f.SizeBytes > bounds.MaxSegmentBytes {
			return false
		}
	}
	return true
}

func computeStats(files []SourceFile) Stats {
	stats := Stats{FileCount: len(files)}
	for _, f := range files {
		stats.TotalBytes += f.SizeBytes
		stats.TotalSeconds += f.DurationSeconds
	}
	if stats.FileCount > 0 {
		stats.AverageBytes = stats.TotalBytes / int64(stats.FileCount)
		stats.AverageSeconds = stats.TotalSeconds / float64(stats.FileCount)
	}
	return stats
}

// Matches reports whether an existing catalog already reflects this plan:
// same segment count, and each planned segment's size within tolerance of
// the cataloged one. Combined segments are re-encoded on export, so sizes
// are compared with a relative tolerance rather than exactly.
func (p Plan) Matches(existing []catalog.Segment, tolerance float64) bool {
	if len(existing) != len(p.Entries) {
		return false
	}
	if tolerance < 0 {
		tolerance = 0
	}
	for i, entry := range p.Entries {
		planned := float64(entry.SizeBytes())
		actual := float64(existing[i].SizeBytes)
		if planned == 0 {
			if actual != 0 {
				return false
			}
			continue
		}
		if math.Abs(planned-actual)/planned > tolerance {
			return false
		}
	}
	return true
}
