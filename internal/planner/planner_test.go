package planner_test

import (
	"errors"
	"reflect"
	"testing"

	"bookspool/internal/catalog"
	"bookspool/internal/planner"
	"bookspool/internal/services"
)

const mib = 1024 * 1024

func minutes(m float64) float64 { return m * 60 }

func testBounds() planner.Bounds {
	return planner.Bounds{
		MaxSegmentBytes:   150 * mib,
		MinSegmentSeconds: minutes(60),
		MaxSegmentSeconds: minutes(120),
	}
}

func TestComputeEmptyInputFails(t *testing.T) {
	_, err := planner.Compute(nil, testBounds())
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
}

func TestComputeOversizeSingleFileFails(t *testing.T) {
	files := []planner.SourceFile{
		{Index: 1, SizeBytes: 200 * mib, DurationSeconds: minutes(70)},
	}
	_, err := planner.Compute(files, testBounds())
	if !errors.Is(err, services.ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
}

func TestComputePassThroughWhenAllFilesFit(t *testing.T) {
	files := []planner.SourceFile{
		{Index: 1, SizeBytes: 70 * mib, DurationSeconds: minutes(72)},
		{Index: 2, SizeBytes: 68 * mib, DurationSeconds: minutes(70)},
		{Index: 3, SizeBytes: 71 * mib, DurationSeconds: minutes(73)},
	}
	plan, err := planner.Compute(files, testBounds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(plan.Entries) != len(files) {
		t.Fatalf("expected %d entries, got %d", len(files), len(plan.Entries))
	}
	for i, entry := range plan.Entries {
		if entry.Kind != planner.PassThrough {
			t.Fatalf("entry %d: expected pass-through, got %v", i, entry.Kind)
		}
		if len(entry.Files) != 1 || entry.Files[0].Index != files[i].Index {
			t.Fatalf("entry %d: source order not preserved: %#v", i, entry.Files)
		}
	}
	if plan.Stats.CombineRequired {
		t.Fatal("expected CombineRequired=false for pass-through plan")
	}
}

func TestComputeSizeBoundClosesGroups(t *testing.T) {
	// Worked example from the sizing policy: three 40-minute, 80 MiB files.
	// Adding any second file would push size past 150 MiB, so each file
	// closes its own group.
	files := []planner.SourceFile{
		{Index: 1, SizeBytes: 80 * mib, DurationSeconds: minutes(40)},
		{Index: 2, SizeBytes: 80 * mib, DurationSeconds: minutes(40)},
		{Index: 3, SizeBytes: 80 * mib, DurationSeconds: minutes(40)},
	}
	plan, err := planner.Compute(files, testBounds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(plan.Entries) != 3 {
		t.Fatalf("expected 3 single-file segments, got %d", len(plan.Entries))
	}
	for i, entry := range plan.Entries {
		if entry.Kind != planner.Combine {
			t.Fatalf("entry %d: expected combine group, got %v", i, entry.Kind)
		}
		if len(entry.Files) != 1 || entry.Files[0].Index != i+1 {
			t.Fatalf("entry %d: unexpected grouping %#v", i, entry.Files)
		}
	}
}

func TestComputeDurationBoundClosesGroups(t *testing.T) {
	// Small files: 50 minutes / 20 MiB each. Two fit under 120 minutes,
	// a third would exceed it.
	files := []planner.SourceFile{
		{Index: 1, SizeBytes: 20 * mib, DurationSeconds: minutes(50)},
		{Index: 2, SizeBytes: 20 * mib, DurationSeconds: minutes(50)},
		{Index: 3, SizeBytes: 20 * mib, DurationSeconds: minutes(50)},
		{Index: 4, SizeBytes: 20 * mib, DurationSeconds: minutes(50)},
		{Index: 5, SizeBytes: 20 * mib, DurationSeconds: minutes(50)},
	}
	plan, err := planner.Compute(files, testBounds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(plan.Entries) != 3 {
		t.Fatalf("expected 3 groups (2+2+1), got %d", len(plan.Entries))
	}
	wantSizes := []int{2, 2, 1}
	for i, entry := range plan.Entries {
		if len(entry.Files) != wantSizes[i] {
			t.Fatalf("group %d: expected %d files, got %d", i, wantSizes[i], len(entry.Files))
		}
		if entry.DurationSeconds() > minutes(120) {
			t.Fatalf("group %d exceeds duration ceiling: %v", i, entry.DurationSeconds())
		}
	}
	// Trailing remainder is below the minimum and that is acceptable.
	last := plan.Entries[len(plan.Entries)-1]
	if last.DurationSeconds() >= minutes(60) {
		t.Fatalf("expected short trailing remainder, got %v", last.DurationSeconds())
	}
}

func TestComputeNoDurationLostOrInvented(t *testing.T) {
	files := []planner.SourceFile{
		{Index: 1, SizeBytes: 90 * mib, DurationSeconds: minutes(45)},
		{Index: 2, SizeBytes: 30 * mib, DurationSeconds: minutes(15)},
		{Index: 3, SizeBytes: 120 * mib, DurationSeconds: minutes(55)},
		{Index: 4, SizeBytes: 10 * mib, DurationSeconds: minutes(8)},
	}
	plan, err := planner.Compute(files, testBounds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	var planned float64
	var count int
	for _, entry := range plan.Entries {
		planned += entry.DurationSeconds()
		count += len(entry.Files)
		if entry.SizeBytes() > 150*mib {
			t.Fatalf("segment exceeds size ceiling: %d", entry.SizeBytes())
		}
	}
	if count != len(files) {
		t.Fatalf("expected all %d files planned, got %d", len(files), count)
	}
	if planned != plan.Stats.TotalSeconds {
		t.Fatalf("planned duration %v != source total %v", planned, plan.Stats.TotalSeconds)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	files := []planner.SourceFile{
		{Index: 1, SizeBytes: 90 * mib, DurationSeconds: minutes(45)},
		{Index: 2, SizeBytes: 30 * mib, DurationSeconds: minutes(15)},
		{Index: 3, SizeBytes: 120 * mib, DurationSeconds: minutes(55)},
	}
	first, err := planner.Compute(files, testBounds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	second, err := planner.Compute(files, testBounds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical plans for identical input")
	}
}

func TestMatchesDetectsNoWorkNeeded(t *testing.T) {
	files := []planner.SourceFile{
		{Index: 1, SizeBytes: 70 * mib, DurationSeconds: minutes(72)},
		{Index: 2, SizeBytes: 68 * mib, DurationSeconds: minutes(70)},
	}
	plan, err := planner.Compute(files, testBounds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	existing := []catalog.Segment{
		{SizeBytes: 70 * mib, DurationSeconds: minutes(72)},
		{SizeBytes: 68 * mib, DurationSeconds: minutes(70)},
	}
	if !plan.Matches(existing, 0.1) {
		t.Fatal("expected plan to match existing catalog")
	}

	if plan.Matches(existing[:1], 0.1) {
		t.Fatal("expected mismatch on different segment count")
	}

	shrunk := []catalog.Segment{
		{SizeBytes: 30 * mib, DurationSeconds: minutes(72)},
		{SizeBytes: 68 * mib, DurationSeconds: minutes(70)},
	}
	if plan.Matches(shrunk, 0.1) {
		t.Fatal("expected mismatch on divergent segment size")
	}
}
