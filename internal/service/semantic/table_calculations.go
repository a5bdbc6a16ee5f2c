package semantic

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"metricql/internal/dialect"
	"metricql/internal/domain"
)

const metricsCTE = "metrics"

func (b *queryBuilder) collectTableCalculations() error {
	for i := range b.query.TableCalculations {
		tc := &b.query.TableCalculations[i]
		if !dialect.IsPlainIdentifier(tc.Name) {
			return domain.ErrValidation("table calculation name %q must match [a-zA-Z_][a-zA-Z0-9_]*", tc.Name)
		}
		if strings.TrimSpace(tc.SQL) == "" {
			return domain.ErrValidation("table calculation %q has empty sql", tc.Name)
		}
		for _, f := range b.selected {
			if f.Alias() == tc.Name {
				return domain.ErrValidation("table calculation %q collides with selected field %q", tc.Name, f.ID)
			}
		}
		f, err := b.fields.Resolve(tc.Name)
		if err != nil {
			return err
		}
		b.selected[tc.Name] = f
		b.calcs = append(b.calcs, tc)
	}
	return nil
}

// tableCalculationLayers groups calculations by dependency depth. A
// calculation lands one layer above the deepest calculation it references;
// within a layer calculations are ordered by Index.
func (b *queryBuilder) tableCalculationLayers() ([][]*domain.TableCalculation, map[string]string, error) {
	byName := make(map[string]*domain.TableCalculation, len(b.calcs))
	for _, tc := range b.calcs {
		byName[tc.Name] = tc
	}

	rendered := map[string]string{}
	deps := map[string][]string{}
	for _, tc := range b.calcs {
		sql, refs, err := b.renderTableCalculation(tc)
		if err != nil {
			return nil, nil, err
		}
		rendered[tc.Name] = sql
		deps[tc.Name] = refs
	}

	depth := map[string]int{}
	visiting := map[string]bool{}
	var visit func(name string) (int, error)
	visit = func(name string) (int, error) {
		if d, ok := depth[name]; ok {
			return d, nil
		}
		if visiting[name] {
			return 0, domain.ErrValidation("table calculation %q has a circular reference", name)
		}
		visiting[name] = true
		d := 1
		for _, dep := range deps[name] {
			dd, err := visit(dep)
			if err != nil {
				return 0, err
			}
			if dd+1 > d {
				d = dd + 1
			}
		}
		visiting[name] = false
		depth[name] = d
		return d, nil
	}

	var layers [][]*domain.TableCalculation
	for _, tc := range b.calcs {
		d, err := visit(tc.Name)
		if err != nil {
			return nil, nil, err
		}
		for len(layers) < d {
			layers = append(layers, nil)
		}
		layers[d-1] = append(layers[d-1], tc)
	}
	for _, layer := range layers {
		sort.SliceStable(layer, func(i, j int) bool { return layer[i].Index < layer[j].Index })
	}
	return layers, rendered, nil
}

// renderTableCalculation expands ${table.field} to the field's column alias
// and ${name} to another calculation. It returns the calculations referenced.
func (b *queryBuilder) renderTableCalculation(tc *domain.TableCalculation) (string, []string, error) {
	var (
		firstErr error
		refs     []string
	)
	sql := placeholderRe.ReplaceAllStringFunc(tc.SQL, func(match string) string {
		if firstErr != nil {
			return match
		}
		ref := placeholderRe.FindStringSubmatch(match)[1]
		f, err := b.fields.Resolve(ref)
		if err != nil {
			firstErr = err
			return match
		}
		if _, ok := b.selected[f.ID]; !ok {
			firstErr = domain.ErrValidation("table calculation %q references %q which is not selected", tc.Name, f.ID)
			return match
		}
		if f.Kind == domain.ItemTableCalculation {
			if f.ID == tc.Name {
				firstErr = domain.ErrValidation("table calculation %q has a circular reference", tc.Name)
				return match
			}
			refs = append(refs, f.ID)
		}
		return b.dialect.QuoteIdentifier(f.Alias())
	})
	if firstErr != nil {
		return "", nil, firstErr
	}
	return sql, refs, nil
}

// wrapTableCalculations places the aggregated query in a "metrics" CTE and
// computes each calculation layer in its own CTE on top of it.
func (b *queryBuilder) wrapTableCalculations(inner sq.SelectBuilder) (sq.SelectBuilder, error) {
	layers, rendered, err := b.tableCalculationLayers()
	if err != nil {
		return inner, err
	}
	innerSQL, _, err := inner.ToSql()
	if err != nil {
		return inner, fmt.Errorf("assemble metrics query: %w", err)
	}

	ctes := []string{metricsCTE + " AS (" + innerSQL + ")"}
	prev := metricsCTE
	for i, layer := range layers {
		name := fmt.Sprintf("table_calculations_%d", i+1)
		cols := make([]string, 0, len(layer))
		for _, tc := range layer {
			cols = append(cols, "("+rendered[tc.Name]+") AS "+b.dialect.QuoteIdentifier(tc.Name))
		}
		layerSQL, _, err := sq.Select("*").Columns(cols...).From(prev).ToSql()
		if err != nil {
			return inner, fmt.Errorf("assemble %s: %w", name, err)
		}
		ctes = append(ctes, name+" AS ("+layerSQL+")")
		prev = name
	}
	return sq.Select("*").From(prev).Prefix("WITH " + strings.Join(ctes, ", ")), nil
}
