package domain

import (
	"context"
	"io"
	"iter"
)

// WarehouseClient executes compiled SQL against a warehouse.
// Implemented by the clients in internal/warehouse.
type WarehouseClient interface {
	Type() WarehouseType
	RunQuery(ctx context.Context, sql string) (*WarehouseResults, error)
	// StreamQuery runs sql and hands the column metadata and a row sequence to
	// fn. The underlying cursor is closed when fn returns.
	StreamQuery(ctx context.Context, sql string, fn func(columns []WarehouseColumn, rows iter.Seq2[Row, error]) error) error
	Close() error
}

// UserAttributeProvider resolves the attribute values of a user.
type UserAttributeProvider interface {
	GetUserAttributes(ctx context.Context, userID string) (UserAttributeValueMap, error)
}

// ObjectStorage delivers finished CSV files to a bucket.
// Implemented by the uploaders in internal/objectstore.
type ObjectStorage interface {
	IsEnabled() bool
	// UploadCSV stores the content under fileID and returns a URL the caller
	// can download it from.
	UploadCSV(ctx context.Context, r io.Reader, fileID string) (string, error)
}
