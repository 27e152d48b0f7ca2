// Package library maintains the browseable view of available books. The
// remote store is the source of truth for which books exist; the local
// catalog contributes segment durations recorded at ingestion time. Listings
// are cached, and concurrent refreshes collapse into a single store round
// trip.
package library

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bookspool/internal/catalog"
	"bookspool/internal/config"
	"bookspool/internal/logging"
	"bookspool/internal/services"
)

const refreshKey = "library-refresh"

// BookLister enumerates the books held in the remote store.
type BookLister interface {
	ListBooks(ctx context.Context, rootFolder string) ([]*catalog.Book, error)
}

// Service serves cached book listings and refreshes them on demand.
type Service struct {
	lister BookLister
	store  *catalog.Store
	root   string
	logger *slog.Logger

	group singleflight.Group

	mu          sync.RWMutex
	books       []*catalog.Book
	refreshedAt time.Time
}

// NewService wires a library over the remote lister and the local catalog.
func NewService(cfg *config.Config, lister BookLister, store *catalog.Store, logger *slog.Logger) *Service {
	return &Service{
		lister: lister,
		store:  store,
		root:   cfg.Drive.RootFolder,
		logger: logging.NewComponentLogger(logger, "library"),
	}
}

// Books returns the cached listing, refreshing first when nothing has been
// fetched yet.
func (s *Service) Books(ctx context.Context) ([]*catalog.Book, error) {
	s.mu.RLock()
	cached := s.books
	stale := s.refreshedAt.IsZero()
	s.mu.RUnlock()

	if !stale {
		return cached, nil
	}
	return s.Refresh(ctx)
}

// Refresh fetches the remote listing, merges locally recorded durations, and
// replaces the cache. Overlapping calls share one fetch.
func (s *Service) Refresh(ctx context.Context) ([]*catalog.Book, error) {
	result, err, shared := s.group.Do(refreshKey, func() (any, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	books := result.([]*catalog.Book)
	if shared {
		s.logger.Debug("refresh shared with concurrent caller")
	}
	return books, nil
}

// Get returns one book from the cache by ID, refreshing when the cache is
// empty. An unknown ID is an input error.
func (s *Service) Get(ctx context.Context, bookID string) (*catalog.Book, error) {
	books, err := s.Books(ctx)
	if err != nil {
		return nil, err
	}
	for _, book := range books {
		if book.ID == bookID {
			return book, nil
		}
	}
	return nil, services.Wrap(services.ErrInput, "library", "get", "unknown book "+bookID, nil)
}

// RefreshedAt reports when the cache was last replaced.
func (s *Service) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}

func (s *Service) refresh(ctx context.Context) ([]*catalog.Book, error) {
	remote, err := s.lister.ListBooks(ctx, s.root)
	if err != nil {
		return nil, err
	}
	s.mergeDurations(ctx, remote)
	sort.Slice(remote, func(i, j int) bool { return remote[i].DisplayName < remote[j].DisplayName })

	s.mu.Lock()
	s.books = remote
	s.refreshedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("library refreshed", logging.Args(logging.Int("books", len(remote)))...)
	return remote, nil
}

// mergeDurations copies segment durations from the local catalog onto the
// remote listing. Books ingested elsewhere simply keep zero durations.
func (s *Service) mergeDurations(ctx context.Context, books []*catalog.Book) {
	if s.store == nil {
		return
	}
	for _, book := range books {
		local, err := s.store.GetBook(ctx, book.ID)
		if err != nil {
			continue
		}
		durations := make(map[string]float64, len(local.Segments))
		for _, seg := range local.Segments {
			durations[seg.FileID] = seg.DurationSeconds
		}
		for i := range book.Segments {
			if d, ok := durations[book.Segments[i].FileID]; ok {
				book.Segments[i].DurationSeconds = d
			}
		}
		book.CreatedAt = local.CreatedAt
		book.UpdatedAt = local.UpdatedAt
	}
}
