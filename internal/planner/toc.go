package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bookspool/internal/catalog"
)

// TOC is the table-of-contents record produced for one book. It is derived
// entirely from the final segment list and regenerated whenever the plan
// changes, never hand-edited.
type TOC struct {
	BookID        string     `json:"book_id"`
	BookTitle     string     `json:"book_title"`
	CreatedDate   time.Time  `json:"created_date"`
	TotalSegments int        `json:"total_segments"`
	Segments      []TOCEntry `json:"segments"`
}

// TOCEntry describes one segment: display name, cumulative start offset
// within the book, and duration.
type TOCEntry struct {
	Sequence           int     `json:"segment"`
	DisplayName        string  `json:"display_name"`
	StartOffsetSeconds float64 `json:"start_offset_seconds"`
	DurationSeconds    float64 `json:"duration_seconds"`
	SizeBytes          int64   `json:"size_bytes"`
}

// BuildTOC derives the table of contents from a book's final segment list.
func BuildTOC(bookID, bookTitle string, segments []catalog.Segment, createdAt time.Time) TOC {
	toc := TOC{
		BookID:        bookID,
		BookTitle:     DisplayTitle(bookTitle),
		CreatedDate:   createdAt.UTC(),
		TotalSegments: len(segments),
		Segments:      make([]TOCEntry, 0, len(segments)),
	}
	var offset float64
	for i, seg := range segments {
		toc.Segments = append(toc.Segments, TOCEntry{
			Sequence:           i + 1,
			DisplayName:        seg.DisplayName,
			StartOffsetSeconds: offset,
			DurationSeconds:    seg.DurationSeconds,
			SizeBytes:          seg.SizeBytes,
		})
		offset += seg.DurationSeconds
	}
	return toc
}

// Marshal renders the TOC as indented JSON for upload alongside the segments.
func (t TOC) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal toc: %w", err)
	}
	return data, nil
}

// SegmentName builds the stable segment file name for one book: the book id
// plus a zero-padded 1-based sequence number. The pad width grows with the
// segment count so names sort correctly for any book length.
func SegmentName(bookID string, seq, total int) string {
	width := 2
	for limit := 100; total >= limit; limit *= 10 {
		width++
	}
	return fmt.Sprintf("%s_segment_%0*d", bookID, width, seq)
}

var titleCaser = cases.Title(language.English)

// DisplayTitle renders a scraped or slugged book name for display:
// underscores become spaces and words are title-cased.
func DisplayTitle(name string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(name), "_", " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return ""
	}
	return titleCaser.String(cleaned)
}
