package catalog_test

import (
	"context"
	"errors"
	"testing"

	"bookspool/internal/catalog"
	"bookspool/internal/testsupport"
)

func sampleBook() *catalog.Book {
	return &catalog.Book{
		ID:          "well_of_ascension",
		DisplayName: "Well Of Ascension",
		Segments: []catalog.Segment{
			{FileID: "f1", DisplayName: "Well Of Ascension 01", Index: 0, SizeBytes: 100 << 20, DurationSeconds: 4200},
			{FileID: "f2", DisplayName: "Well Of Ascension 02", Index: 1, SizeBytes: 90 << 20, DurationSeconds: 3900},
		},
	}
}

func TestSaveAndGetBook(t *testing.T) {
	store := testsupport.MustOpenCatalog(t)
	ctx := context.Background()

	if err := store.SaveBook(ctx, sampleBook()); err != nil {
		t.Fatalf("SaveBook failed: %v", err)
	}

	book, err := store.GetBook(ctx, "well_of_ascension")
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if book.DisplayName != "Well Of Ascension" {
		t.Fatalf("unexpected display name: %q", book.DisplayName)
	}
	if len(book.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(book.Segments))
	}
	if book.Segments[0].FileID != "f1" || book.Segments[1].FileID != "f2" {
		t.Fatalf("segment order not preserved: %#v", book.Segments)
	}
}

func TestSaveBookReplacesSegments(t *testing.T) {
	store := testsupport.MustOpenCatalog(t)
	ctx := context.Background()

	book := sampleBook()
	if err := store.SaveBook(ctx, book); err != nil {
		t.Fatalf("SaveBook failed: %v", err)
	}

	book.Segments = book.Segments[:1]
	if err := store.SaveBook(ctx, book); err != nil {
		t.Fatalf("SaveBook (replace) failed: %v", err)
	}

	fetched, err := store.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if len(fetched.Segments) != 1 {
		t.Fatalf("expected replaced segment list of 1, got %d", len(fetched.Segments))
	}
}

func TestGetBookMissing(t *testing.T) {
	store := testsupport.MustOpenCatalog(t)
	if _, err := store.GetBook(context.Background(), "absent"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveBookRejectsEmptySegments(t *testing.T) {
	store := testsupport.MustOpenCatalog(t)
	book := &catalog.Book{ID: "x", DisplayName: "X"}
	if err := store.SaveBook(context.Background(), book); err == nil {
		t.Fatal("expected error for book without segments")
	}
}

func TestListBooksOrdersByName(t *testing.T) {
	store := testsupport.MustOpenCatalog(t)
	ctx := context.Background()

	b1 := sampleBook()
	b2 := &catalog.Book{
		ID:          "alloy_of_law",
		DisplayName: "Alloy Of Law",
		Segments:    []catalog.Segment{{FileID: "a1", DisplayName: "Alloy Of Law 01", SizeBytes: 1, DurationSeconds: 60}},
	}
	if err := store.SaveBook(ctx, b1); err != nil {
		t.Fatalf("SaveBook failed: %v", err)
	}
	if err := store.SaveBook(ctx, b2); err != nil {
		t.Fatalf("SaveBook failed: %v", err)
	}

	books, err := store.ListBooks(ctx)
	if err != nil {
		t.Fatalf("ListBooks failed: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(books))
	}
	if books[0].ID != "alloy_of_law" {
		t.Fatalf("expected alphabetical order, got %q first", books[0].ID)
	}
}

func TestBookIDFromName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Well Of Ascension", "well_of_ascension"},
		{"  The Final Empire  ", "the_final_empire"},
		{"Book: Part 2!", "book_part_2"},
	}
	for _, tc := range tests {
		if got := catalog.BookIDFromName(tc.in); got != tc.want {
			t.Fatalf("BookIDFromName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDeleteBook(t *testing.T) {
	store := testsupport.MustOpenCatalog(t)
	ctx := context.Background()

	if err := store.SaveBook(ctx, sampleBook()); err != nil {
		t.Fatalf("SaveBook failed: %v", err)
	}
	if err := store.DeleteBook(ctx, "well_of_ascension"); err != nil {
		t.Fatalf("DeleteBook failed: %v", err)
	}
	if _, err := store.GetBook(ctx, "well_of_ascension"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteBookMissing(t *testing.T) {
	store := testsupport.MustOpenCatalog(t)

	if err := store.DeleteBook(context.Background(), "nope"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
