package export

import (
	"slices"

	"metricql/internal/domain"
)

// column is one CSV column.
type column struct {
	id     string
	header string
	item   domain.Item
}

// exportColumns selects and orders the columns of an export. Selected ids
// without field metadata are dropped.
func exportColumns(fields map[string]domain.Item, opts CSVOptions) ([]column, error) {
	selected := opts.Columns
	if len(selected) == 0 {
		selected = defaultColumnOrder(fields)
	}

	ordered := make([]string, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	add := func(id string) {
		if seen[id] || !slices.Contains(selected, id) {
			return
		}
		if _, ok := fields[id]; !ok {
			return
		}
		seen[id] = true
		ordered = append(ordered, id)
	}
	for _, id := range opts.ColumnOrder {
		add(id)
	}
	for _, id := range selected {
		add(id)
	}
	if len(ordered) == 0 {
		return nil, domain.ErrValidation("export has no columns")
	}

	cols := make([]column, len(ordered))
	for i, id := range ordered {
		item := fields[id]
		cols[i] = column{id: id, header: header(item, opts), item: item}
	}
	return cols, nil
}

func header(item domain.Item, opts CSVOptions) string {
	if label, ok := opts.CustomLabels[item.ID]; ok && label != "" {
		return label
	}
	label := item.Label
	if label == "" {
		label = item.ID
	}
	if opts.ShowTableNames && item.TableLabel != "" {
		return item.TableLabel + " " + label
	}
	return label
}

// defaultColumnOrder lists dimensions, metrics, then table calculations,
// each sorted by id.
func defaultColumnOrder(fields map[string]domain.Item) []string {
	rank := map[domain.ItemKind]int{
		domain.ItemDimension:        0,
		domain.ItemMetric:           1,
		domain.ItemTableCalculation: 2,
	}
	ids := make([]string, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if d := rank[fields[a].Kind] - rank[fields[b].Kind]; d != 0 {
			return d
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return ids
}

// warehouseFields describes raw warehouse columns as items keyed by column name.
func warehouseFields(columns []domain.WarehouseColumn) (map[string]domain.Item, []string) {
	fields := make(map[string]domain.Item, len(columns))
	ids := make([]string, 0, len(columns))
	for _, c := range columns {
		fields[c.Name] = domain.Item{ID: c.Name, Name: c.Name, Label: c.Name, Type: c.Type}
		ids = append(ids, c.Name)
	}
	return fields, ids
}
