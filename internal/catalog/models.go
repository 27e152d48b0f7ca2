package catalog

import (
	"strings"
	"time"
)

// Segment is one playable audio unit within a book. SizeBytes never exceeds
// the planner's segment size ceiling; DurationSeconds falls within the
// configured duration bounds except for a final trailing remainder.
type Segment struct {
	FileID          string
	DisplayName     string
	Index           int
	SizeBytes       int64
	DurationSeconds float64
}

// Book is an ordered collection of segments representing one audiobook.
// Books are created by the ingestion pipeline and read-only to playback.
type Book struct {
	ID          string
	DisplayName string
	TOCFileID   string
	Segments    []Segment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SegmentCount returns the number of segments in the book.
func (b *Book) SegmentCount() int {
	if b == nil {
		return 0
	}
	return len(b.Segments)
}

// TotalDurationSeconds sums the durations of all segments.
func (b *Book) TotalDurationSeconds() float64 {
	if b == nil {
		return 0
	}
	var total float64
	for _, seg := range b.Segments {
		total += seg.DurationSeconds
	}
	return total
}

// BookIDFromName derives a stable book identifier from a display name.
func BookIDFromName(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '_'
		default:
			return -1
		}
	}, id)
	for strings.Contains(id, "__") {
		id = strings.ReplaceAll(id, "__", "_")
	}
	return strings.Trim(id, "_")
}
