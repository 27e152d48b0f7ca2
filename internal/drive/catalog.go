package drive

import (
	"context"
	"sort"
	"strings"

	"bookspool/internal/catalog"
)

// ListBooks builds the book catalog from the store's folder layout: each
// subfolder of the root folder is one book, its audio files the ordered
// segments, and an optional *_toc.json file the TOC reference. Segment
// durations are not part of the listing contract; callers merge them from
// the local catalog or the TOC when they need them.
func (c *Client) ListBooks(ctx context.Context, rootFolder string) ([]*catalog.Book, error) {
	root, err := c.EnsureFolder(ctx, rootFolder, "")
	if err != nil {
		return nil, err
	}

	folders, err := c.ListFolders(ctx, root.ID)
	if err != nil {
		return nil, err
	}

	books := make([]*catalog.Book, 0, len(folders))
	for _, folder := range folders {
		files, err := c.ListFiles(ctx, folder.ID)
		if err != nil {
			return nil, err
		}

		book := &catalog.Book{
			ID:          catalog.BookIDFromName(folder.Name),
			DisplayName: folder.Name,
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
		for _, file := range files {
			if strings.HasSuffix(file.Name, "_toc.json") {
				book.TOCFileID = file.ID
				continue
			}
			if !strings.HasSuffix(file.Name, ".mp3") {
				continue
			}
			book.Segments = append(book.Segments, catalog.Segment{
				FileID:      file.ID,
				DisplayName: strings.TrimSuffix(file.Name, ".mp3"),
				Index:       len(book.Segments),
				SizeBytes:   file.SizeBytes,
			})
		}
		if len(book.Segments) == 0 {
			continue
		}
		books = append(books, book)
	}
	return books, nil
}
