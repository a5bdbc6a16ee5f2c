package domain

// Row is one raw warehouse row keyed by column alias.
type Row map[string]any

// ResultValue holds the raw warehouse value of a cell and its display form.
type ResultValue struct {
	Raw       any    `json:"raw"`
	Formatted string `json:"formatted"`
}

// ResultCell wraps a value the way result rows are returned to callers.
type ResultCell struct {
	Value ResultValue `json:"value"`
}

// ResultRow maps a field id to its formatted cell.
type ResultRow map[string]ResultCell

// WarehouseColumn describes one column of a warehouse result.
type WarehouseColumn struct {
	Name         string        `json:"name"`
	Type         DimensionType `json:"type"`
	DatabaseType string        `json:"databaseType,omitempty"`
}

// WarehouseResults is a fully materialised warehouse result.
type WarehouseResults struct {
	Columns []WarehouseColumn `json:"columns"`
	Rows    []Row             `json:"rows"`
}

// ColumnTypes returns the semantic type of every column keyed by name.
func (r *WarehouseResults) ColumnTypes() map[string]DimensionType {
	out := make(map[string]DimensionType, len(r.Columns))
	for _, c := range r.Columns {
		out[c.Name] = c.Type
	}
	return out
}

// CSVFile references a finished CSV export.
type CSVFile struct {
	Path      string `json:"path"`
	Filename  string `json:"filename"`
	LocalPath string `json:"localPath,omitempty"`
	Truncated bool   `json:"truncated"`
}

// UserAttributeValueMap maps attribute names to the requesting user's values.
// It is read-only for the engine.
type UserAttributeValueMap map[string]string
