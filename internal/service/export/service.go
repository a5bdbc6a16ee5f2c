package export

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"metricql/internal/domain"
	"metricql/internal/service/format"
)

// Service writes CSV exports and delivers them.
type Service struct {
	cfg     Config
	storage domain.ObjectStorage
	pool    *WorkerPool
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewService creates an export Service. storage may be nil, in which case
// files are always served from LocalDir.
func NewService(cfg Config, storage domain.ObjectStorage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "export")
	cfg = cfg.withDefaults()
	return &Service{
		cfg:     cfg,
		storage: storage,
		pool:    NewWorkerPool(cfg.WorkerConcurrency, logger),
		logger:  logger,
		now:     time.Now,
		timers:  make(map[string]*time.Timer),
	}
}

// LocalDir returns the directory files are written to.
func (s *Service) LocalDir() string {
	return s.cfg.LocalDir
}

// Export writes rows keyed by field id to a CSV file. Small results are
// written on the calling goroutine; larger ones run on the worker pool.
func (s *Service) Export(ctx context.Context, rows []domain.Row, fields map[string]domain.Item, opts CSVOptions) (*domain.CSVFile, error) {
	cols, err := exportColumns(fields, opts)
	if err != nil {
		return nil, err
	}
	job := func(ctx context.Context) (*domain.CSVFile, error) {
		return s.write(ctx, cols, rowSeq(rows), opts)
	}
	if len(rows) <= s.cfg.WorkerThreshold {
		return job(ctx)
	}
	s.logger.Info("scheduling export on worker pool", "rows", len(rows), "columns", len(cols))
	return s.await(ctx, s.pool.Submit(ctx, job))
}

// ExportSQL streams the result of sql into a CSV file. Headers are the
// warehouse column names. The row count is unknown up front so these
// exports always run on the worker pool.
func (s *Service) ExportSQL(ctx context.Context, client domain.WarehouseClient, sql string, opts CSVOptions) (*domain.CSVFile, error) {
	if client == nil {
		return nil, fmt.Errorf("export warehouse client is not configured")
	}
	job := func(ctx context.Context) (*domain.CSVFile, error) {
		var file *domain.CSVFile
		err := client.StreamQuery(ctx, sql, func(columns []domain.WarehouseColumn, rows iter.Seq2[domain.Row, error]) error {
			fields, ids := warehouseFields(columns)
			cols, err := exportColumns(fields, CSVOptions{Columns: ids})
			if err != nil {
				return err
			}
			file, err = s.write(ctx, cols, rows, CSVOptions{Name: opts.Name, OnlyRaw: true})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("export sql: %w", err)
		}
		return file, nil
	}
	return s.await(ctx, s.pool.Submit(ctx, job))
}

func (s *Service) await(ctx context.Context, results <-chan Result) (*domain.CSVFile, error) {
	select {
	case res := <-results:
		return res.File, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// write runs the pipeline into a temporary file and renames it to its file
// id once the row count is known.
func (s *Service) write(ctx context.Context, cols []column, rows iter.Seq2[domain.Row, error], opts CSVOptions) (*domain.CSVFile, error) {
	if err := os.MkdirAll(s.cfg.LocalDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	tmp := filepath.Join(s.cfg.LocalDir, "."+uuid.New().String()+partialSuffix)
	n, err := writeCSV(ctx, tmp, cols, rows, s.cfg.ChunkSize, format.Options{OnlyRaw: opts.OnlyRaw})
	if err != nil {
		return nil, err
	}

	truncated := IsTruncated(n, len(cols), s.cfg.CellsLimit)
	fileID := GenerateFileID(opts.Name, truncated, s.now())
	local := filepath.Join(s.cfg.LocalDir, fileID)
	if err := os.Rename(tmp, local); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("finalize csv file: %w", err)
	}
	s.logger.Debug("csv written", "file", fileID, "rows", n, "truncated", truncated)
	return s.deliver(ctx, fileID, local, truncated)
}

// deliver uploads the file when object storage is enabled and schedules the
// local copy for deletion. Otherwise the file is served by the API.
func (s *Service) deliver(ctx context.Context, fileID, local string, truncated bool) (*domain.CSVFile, error) {
	file := &domain.CSVFile{
		Path:      DownloadPathPrefix + fileID,
		Filename:  fileID,
		LocalPath: local,
		Truncated: truncated,
	}
	if s.storage == nil || !s.storage.IsEnabled() {
		return file, nil
	}

	f, err := os.Open(local)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	url, err := s.storage.UploadCSV(ctx, f, fileID)
	_ = f.Close()
	if err != nil {
		_ = os.Remove(local)
		return nil, fmt.Errorf("upload csv: %w", err)
	}
	file.Path = url
	s.scheduleDelete(fileID, local)
	return file, nil
}

func (s *Service) scheduleDelete(fileID, local string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[fileID] = time.AfterFunc(s.cfg.LocalFileTTL, func() {
		s.mu.Lock()
		delete(s.timers, fileID)
		s.mu.Unlock()
		if err := os.Remove(local); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove uploaded csv", "file", fileID, "error", err)
		}
	})
}

// OpenLocal opens a locally served CSV file.
func (s *Service) OpenLocal(fileID string) (*os.File, error) {
	if !ValidFileID(fileID) {
		return nil, domain.ErrValidation("invalid csv file id %q", fileID)
	}
	f, err := os.Open(filepath.Join(s.cfg.LocalDir, fileID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNotFound("csv file %q not found", fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	return f, nil
}

// Close waits for running exports and removes uploaded files whose deletion
// is still pending.
func (s *Service) Close() {
	s.pool.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	for fileID, t := range s.timers {
		if t.Stop() {
			_ = os.Remove(filepath.Join(s.cfg.LocalDir, fileID))
		}
		delete(s.timers, fileID)
	}
}
