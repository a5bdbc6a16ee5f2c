// Package export streams query results into CSV files and delivers them
// either through object storage or from local disk.
package export

import (
	"os"
	"path/filepath"
	"time"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultCellsLimit        = 100_000
	DefaultChunkSize         = 50_000
	DefaultWorkerThreshold   = 500
	DefaultWorkerConcurrency = 2
	DefaultLocalFileTTL      = 10 * time.Minute
	DefaultSweepSchedule     = "@every 15m"
	// DownloadPathPrefix is the API route local CSV files are served from.
	DownloadPathPrefix = "/api/v1/csv/"
)

// Config controls the export pipeline.
type Config struct {
	LocalDir string
	// CellsLimit is the cell budget above which an export is flagged as truncated.
	CellsLimit int
	// ChunkSize is the number of rows moved through the pipeline at a time.
	ChunkSize int
	// WorkerThreshold is the largest row count exported on the calling goroutine.
	WorkerThreshold   int
	WorkerConcurrency int
	// LocalFileTTL is how long a local file is kept after it was uploaded.
	LocalFileTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.LocalDir == "" {
		c.LocalDir = filepath.Join(os.TempDir(), "metricql-csv")
	}
	if c.CellsLimit <= 0 {
		c.CellsLimit = DefaultCellsLimit
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.WorkerThreshold <= 0 {
		c.WorkerThreshold = DefaultWorkerThreshold
	}
	if c.WorkerConcurrency <= 0 {
		c.WorkerConcurrency = DefaultWorkerConcurrency
	}
	if c.LocalFileTTL <= 0 {
		c.LocalFileTTL = DefaultLocalFileTTL
	}
	return c
}

// CSVOptions describes one export.
type CSVOptions struct {
	// Name is the chart or query name the file id is derived from.
	Name string `json:"name"`
	// Columns lists the selected field ids. Empty means every field.
	Columns []string `json:"columns,omitempty"`
	// ColumnOrder puts the listed field ids first, in that order.
	ColumnOrder    []string          `json:"columnOrder,omitempty"`
	CustomLabels   map[string]string `json:"customLabels,omitempty"`
	ShowTableNames bool              `json:"showTableNames,omitempty"`
	OnlyRaw        bool              `json:"onlyRaw,omitempty"`
}
