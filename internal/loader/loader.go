package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/divisions-cli/internal/dataset"
	"github.com/sells-group/divisions-cli/internal/fetch"
)

// SnapshotStore receives the assembled snapshot. Satisfied by
// *dataset.SQLiteGateway.
type SnapshotStore interface {
	Migrate(ctx context.Context) error
	LoadSnapshot(ctx context.Context, id, version string, rows []dataset.Row) error
}

// Options configures a snapshot build.
type Options struct {
	TempDir     string
	UserAgent   string
	Timeout     time.Duration
	Concurrency int
}

// Summary reports what a completed snapshot build produced.
type Summary struct {
	SnapshotID string
	Version    string
	Sources    int
	Rows       int
	Duration   time.Duration
}

// Loader downloads manifest sources and assembles them into one snapshot.
type Loader struct {
	http  fetch.Fetcher
	ftp   fetch.Fetcher
	file  fetch.Fetcher
	store SnapshotStore
	opts  Options
}

// New builds a loader with HTTP and FTP fetchers derived from the options.
func New(store SnapshotStore, opts Options) *Loader {
	if opts.TempDir == "" {
		opts.TempDir = "/tmp/divisions"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Loader{
		http: fetch.NewHTTPFetcher(fetch.HTTPOptions{
			UserAgent: opts.UserAgent,
			Timeout:   opts.Timeout,
		}),
		ftp:   fetch.NewFTPFetcher(fetch.FTPOptions{Timeout: opts.Timeout}),
		file:  fetch.NewFileFetcher(),
		store: store,
		opts:  opts,
	}
}

// Run downloads every manifest source, parses the shapefiles, and replaces
// the stored snapshot. Sources download in parallel but rows are assembled
// in manifest order, which fixes the snapshot's natural resolution order.
func (l *Loader) Run(ctx context.Context, m *Manifest) (*Summary, error) {
	start := time.Now()
	log := zap.L().With(zap.String("component", "loader"), zap.String("version", m.Version))

	if err := l.store.Migrate(ctx); err != nil {
		return nil, err
	}

	perSource := make([][]dataset.Row, len(m.Sources))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)

	for i, src := range m.Sources {
		i, src := i, src
		g.Go(func() error {
			rows, err := l.loadSource(gCtx, src)
			if err != nil {
				return err
			}
			perSource[i] = rows
			log.Info("source loaded",
				zap.String("source", src.Name),
				zap.Int("rows", len(rows)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []dataset.Row
	for _, rows := range perSource {
		all = append(all, rows...)
	}
	if len(all) == 0 {
		return nil, eris.Errorf("loader: manifest %s produced no rows", m.Version)
	}

	id := uuid.New().String()
	if err := l.store.LoadSnapshot(ctx, id, m.Version, all); err != nil {
		return nil, err
	}

	summary := &Summary{
		SnapshotID: id,
		Version:    m.Version,
		Sources:    len(m.Sources),
		Rows:       len(all),
		Duration:   time.Since(start),
	}

	log.Info("snapshot loaded",
		zap.String("snapshot_id", summary.SnapshotID),
		zap.Int("rows", summary.Rows),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// loadSource downloads one archive, extracts it, and parses its shapefile.
func (l *Loader) loadSource(ctx context.Context, src Source) ([]dataset.Row, error) {
	dir := filepath.Join(l.opts.TempDir, src.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "loader: create temp dir for %s", src.Name)
	}

	archive := filepath.Join(dir, "archive.zip")
	if _, err := l.fetcherFor(src.URL).DownloadToFile(ctx, src.URL, archive); err != nil {
		return nil, eris.Wrapf(err, "loader: download source %s", src.Name)
	}

	extracted, err := fetch.ExtractZIP(archive, dir)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: extract source %s", src.Name)
	}

	shpPath, err := findShapefile(extracted)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: source %s", src.Name)
	}

	return ParseShapefile(shpPath, src)
}

func (l *Loader) fetcherFor(url string) fetch.Fetcher {
	switch {
	case strings.HasPrefix(strings.ToLower(url), "ftp://"):
		return l.ftp
	case strings.HasPrefix(strings.ToLower(url), "file://"):
		return l.file
	default:
		return l.http
	}
}

func findShapefile(paths []string) (string, error) {
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".shp") {
			return p, nil
		}
	}
	return "", eris.New("archive contains no .shp file")
}
