package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"bookspool/internal/catalog"
	"bookspool/internal/config"
	"bookspool/internal/drive"
	"bookspool/internal/fetch"
	"bookspool/internal/logging"
	"bookspool/internal/notifications"
	"bookspool/internal/planner"
	"bookspool/internal/services"
)

// matchTolerance is the relative size slack used when deciding whether the
// remote store already holds this plan's segments. Combined segments are
// re-encoded, so byte-exact comparison would defeat the idempotency check.
const matchTolerance = 0.10

// Fetcher discovers and downloads source audio from the web source.
type Fetcher interface {
	BookTitle() string
	Discover(ctx context.Context) ([]string, error)
	DownloadAll(ctx context.Context, urls []string, destDir string) ([]fetch.Download, error)
}

// Combiner merges ordered source files into one output file.
type Combiner interface {
	Combine(ctx context.Context, inputs []string, output string) error
}

// Store is the slice of the remote file store the pipeline uses.
type Store interface {
	EnsureFolder(ctx context.Context, name, parent string) (drive.Folder, error)
	ListFiles(ctx context.Context, folderID string) ([]drive.File, error)
	UploadFile(ctx context.Context, folderID, name, localPath string) (drive.File, error)
	UploadBytes(ctx context.Context, folderID, name string, payload []byte) (drive.File, error)
}

// Result summarizes one acquisition run.
type Result struct {
	JobID        string
	BookID       string
	DisplayTitle string
	SourceURLs   []string
	Plan         planner.Plan
	Uploaded     int
	Skipped      bool
	DryRun       bool
}

// Pipeline orchestrates one acquisition run end to end.
type Pipeline struct {
	cfg      *config.Config
	fetcher  Fetcher
	combiner Combiner
	store    Store
	books    *catalog.Store
	notifier notifications.Service
	logger   *slog.Logger

	lock   *flock.Flock
	statfs statfsFunc
	now    func() time.Time
}

// New wires a pipeline from its collaborators.
func New(cfg *config.Config, fetcher Fetcher, combiner Combiner, store Store, books *catalog.Store, notifier notifications.Service, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		fetcher:  fetcher,
		combiner: combiner,
		store:    store,
		books:    books,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		lock:     flock.New(filepath.Join(cfg.Paths.LogDir, "bookspool.lock")),
		statfs:   realStatfs,
		now:      time.Now,
	}
}

// WithStatfs overrides the free-space probe (used in tests).
func (p *Pipeline) WithStatfs(fn statfsFunc) *Pipeline {
	p.statfs = fn
	return p
}

// WithClock overrides the timestamp source (used in tests).
func (p *Pipeline) WithClock(fn func() time.Time) *Pipeline {
	p.now = fn
	return p
}

// Run executes the acquisition workflow. With dryRun set it stops after
// discovery and reports what would be fetched.
func (p *Pipeline) Run(ctx context.Context, dryRun bool) (*Result, error) {
	ok, err := p.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire pipeline lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrState, "pipeline", "run", "another acquisition run is in progress", nil)
	}
	defer func() {
		if unlockErr := p.lock.Unlock(); unlockErr != nil {
			p.logger.Warn("release pipeline lock", logging.Args(logging.Error(unlockErr))...)
		}
	}()

	result := &Result{JobID: uuid.NewString(), DryRun: dryRun}
	logger := p.logger.With(logging.String(logging.FieldJobID, result.JobID))

	rawTitle := p.fetcher.BookTitle()
	result.DisplayTitle = planner.DisplayTitle(rawTitle)
	result.BookID = catalog.BookIDFromName(result.DisplayTitle)
	if result.BookID == "" {
		return nil, services.Wrap(services.ErrInput, "pipeline", "run", "source URL yields no usable book title", nil)
	}
	logger.Info("acquisition started",
		logging.Args(
			logging.String(logging.FieldBookID, result.BookID),
			logging.Bool("dry_run", dryRun))...)

	urls, err := p.fetcher.Discover(ctx)
	if err != nil {
		return nil, p.fail(ctx, err, "discover")
	}
	result.SourceURLs = urls
	logger.Info("source files discovered", logging.Args(logging.Int("files", len(urls)))...)
	if dryRun {
		return result, nil
	}

	if err := checkDiskSpace(p.statfs, p.cfg.Paths.StagingDir, 2*uint64(p.cfg.MaxSegmentBytes())); err != nil {
		return nil, p.fail(ctx, err, "preflight")
	}

	destDir := filepath.Join(p.cfg.Paths.StagingDir, result.BookID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer func() {
		if removeErr := os.RemoveAll(destDir); removeErr != nil {
			logger.Warn("clean staging dir", logging.Args(logging.Error(removeErr))...)
		}
	}()

	downloads, err := p.fetcher.DownloadAll(ctx, urls, destDir)
	if err != nil {
		return nil, p.fail(ctx, err, "download")
	}
	if err := p.notifier.FetchComplete(ctx, result.DisplayTitle, len(downloads)); err != nil {
		logger.Warn("fetch notice failed", logging.Args(logging.Error(err))...)
	}

	bounds := planner.Bounds{
		MaxSegmentBytes:   p.cfg.MaxSegmentBytes(),
		MinSegmentSeconds: p.cfg.MinSegmentSeconds(),
		MaxSegmentSeconds: p.cfg.MaxSegmentSeconds(),
	}
	plan, err := planner.Compute(fetch.SourceFiles(downloads), bounds)
	if err != nil {
		return nil, p.fail(ctx, err, "plan")
	}
	result.Plan = plan
	logger.Info("segment plan computed",
		logging.Args(
			logging.Int("entries", len(plan.Entries)),
			logging.Bool("combine_required", plan.Stats.CombineRequired))...)

	root, err := p.store.EnsureFolder(ctx, p.cfg.Drive.RootFolder, "")
	if err != nil {
		return nil, p.fail(ctx, err, "upload")
	}
	bookFolder, err := p.store.EnsureFolder(ctx, result.DisplayTitle, root.ID)
	if err != nil {
		return nil, p.fail(ctx, err, "upload")
	}

	if existing, listErr := p.store.ListFiles(ctx, bookFolder.ID); listErr == nil {
		if plan.Matches(remoteSegments(existing), matchTolerance) {
			logger.Info("remote segments already match plan, nothing to do")
			result.Skipped = true
			return result, nil
		}
	}

	segments, err := p.export(ctx, logger, plan, downloads, destDir, bookFolder.ID, result.BookID)
	if err != nil {
		return nil, p.fail(ctx, err, "export")
	}
	result.Uploaded = len(segments)

	toc := planner.BuildTOC(result.BookID, result.DisplayTitle, segments, p.now())
	tocData, err := toc.Marshal()
	if err != nil {
		return nil, p.fail(ctx, err, "toc")
	}
	tocFile, err := p.store.UploadBytes(ctx, bookFolder.ID, result.BookID+"_toc.json", tocData)
	if err != nil {
		return nil, p.fail(ctx, err, "toc")
	}

	book := &catalog.Book{
		ID:          result.BookID,
		DisplayName: result.DisplayTitle,
		TOCFileID:   tocFile.ID,
		Segments:    segments,
	}
	if err := p.books.SaveBook(ctx, book); err != nil {
		return nil, p.fail(ctx, err, "catalog")
	}

	if err := p.notifier.UploadComplete(ctx, result.DisplayTitle, len(segments)); err != nil {
		logger.Warn("upload notice failed", logging.Args(logging.Error(err))...)
	}
	logger.Info("acquisition complete",
		logging.Args(
			logging.String(logging.FieldBookID, result.BookID),
			logging.Int("segments", len(segments)))...)
	return result, nil
}

// export materializes every plan entry and uploads it, returning the segment
// records in plan order.
func (p *Pipeline) export(ctx context.Context, logger *slog.Logger, plan planner.Plan, downloads []fetch.Download, destDir, folderID, bookID string) ([]catalog.Segment, error) {
	paths := make(map[int]string, len(downloads))
	for _, d := range downloads {
		paths[d.Index] = d.Path
	}

	segments := make([]catalog.Segment, 0, len(plan.Entries))
	for i, entry := range plan.Entries {
		name := planner.SegmentName(bookID, i+1, len(plan.Entries)) + ".mp3"

		var localPath string
		switch entry.Kind {
		case planner.PassThrough:
			localPath = paths[entry.Files[0].Index]
		case planner.Combine:
			inputs := make([]string, 0, len(entry.Files))
			for _, f := range entry.Files {
				inputs = append(inputs, paths[f.Index])
			}
			localPath = filepath.Join(destDir, name)
			if err := p.combiner.Combine(ctx, inputs, localPath); err != nil {
				return nil, err
			}
		}

		uploaded, err := p.store.UploadFile(ctx, folderID, name, localPath)
		if err != nil {
			return nil, err
		}
		sizeBytes := uploaded.SizeBytes
		if sizeBytes == 0 {
			if info, statErr := os.Stat(localPath); statErr == nil {
				sizeBytes = info.Size()
			}
		}
		segments = append(segments, catalog.Segment{
			FileID:          uploaded.ID,
			DisplayName:     strings.TrimSuffix(name, ".mp3"),
			Index:           i,
			SizeBytes:       sizeBytes,
			DurationSeconds: entry.DurationSeconds(),
		})
		logger.Info("segment uploaded",
			logging.Args(
				logging.Int(logging.FieldSegment, i),
				logging.String("kind", entry.Kind.String()),
				logging.Int64("size_bytes", sizeBytes))...)
	}
	return segments, nil
}

// remoteSegments converts a store file listing into segment records for the
// idempotency check, keeping only audio files in name order.
func remoteSegments(files []drive.File) []catalog.Segment {
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	segments := make([]catalog.Segment, 0, len(files))
	for _, f := range files {
		if !strings.HasSuffix(f.Name, ".mp3") {
			continue
		}
		segments = append(segments, catalog.Segment{
			FileID:      f.ID,
			DisplayName: strings.TrimSuffix(f.Name, ".mp3"),
			Index:       len(segments),
			SizeBytes:   f.SizeBytes,
		})
	}
	return segments
}

// fail logs the failure, sends the error notice, and returns err unchanged.
func (p *Pipeline) fail(ctx context.Context, err error, stage string) error {
	p.logger.Error("acquisition failed",
		logging.Args(
			logging.String("stage", stage),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err))...)
	if notifyErr := p.notifier.Error(ctx, err, stage); notifyErr != nil {
		p.logger.Warn("error notice failed", logging.Args(logging.Error(notifyErr))...)
	}
	return err
}
