package semantic

import (
	"fmt"
	"sort"

	"metricql/internal/domain"
)

// CompiledJoin is one join clause selected for a query.
type CompiledJoin struct {
	Table    string          `json:"table"`
	Type     domain.JoinType `json:"type"`
	SQLTable string          `json:"sqlTable"`
	SQLOn    string          `json:"sqlOn"`
	// DependsOn lists the joined tables sqlOn reads from, besides Table.
	DependsOn []string `json:"dependsOn,omitempty"`
}

// Clause renders the JOIN clause using quote for the table alias.
func (j CompiledJoin) Clause(quote func(string) string) string {
	return fmt.Sprintf("%s %s AS %s ON %s", joinKeyword(j.Type), j.SQLTable, quote(j.Table), j.SQLOn)
}

func joinKeyword(t domain.JoinType) string {
	switch t {
	case domain.JoinInner:
		return "INNER JOIN"
	case domain.JoinRight:
		return "RIGHT OUTER JOIN"
	case domain.JoinFull:
		return "FULL OUTER JOIN"
	default:
		return "LEFT OUTER JOIN"
	}
}

// ResolveJoins returns the joins needed to reach every referenced table from
// the base table. Tables read by a required join's sqlOn are joined too.
// Joins keep their declared order except that a join never precedes a join
// it depends on. Tables the query does not touch are not joined.
func ResolveJoins(explore *domain.Explore, referenced map[string]bool, r *Renderer) ([]CompiledJoin, error) {
	declared := make(map[string]int, len(explore.JoinedTables))
	for i, j := range explore.JoinedTables {
		if _, dup := declared[j.Table]; dup {
			return nil, domain.ErrValidation("explore %q joins table %q more than once", explore.Name, j.Table)
		}
		declared[j.Table] = i
	}

	queue := make([]string, 0, len(referenced))
	for t := range referenced {
		queue = append(queue, t)
	}
	sort.Strings(queue)

	required := map[string]*CompiledJoin{}
	for len(queue) > 0 {
		table := queue[0]
		queue = queue[1:]
		if table == explore.BaseTable || required[table] != nil {
			continue
		}
		if _, ok := explore.Tables[table]; !ok {
			return nil, domain.ErrMissingJoin(table, "table %q is not part of explore %q", table, explore.Name)
		}
		idx, ok := declared[table]
		if !ok {
			return nil, domain.ErrMissingJoin(table, "explore %q has no join path to table %q", explore.Name, table)
		}
		decl := explore.JoinedTables[idx]

		deps := map[string]bool{}
		on, err := r.Render(table, decl.SQLOn, deps)
		if err != nil {
			return nil, fmt.Errorf("join %q: %w", table, err)
		}
		join := &CompiledJoin{
			Table:    table,
			Type:     decl.Type,
			SQLTable: explore.Tables[table].SQLTable,
			SQLOn:    on,
		}
		for dep := range deps {
			if dep == table {
				continue
			}
			if dep != explore.BaseTable {
				join.DependsOn = append(join.DependsOn, dep)
			}
			queue = append(queue, dep)
		}
		sort.Strings(join.DependsOn)
		required[table] = join
	}

	ordered := make([]CompiledJoin, 0, len(required))
	emitted := map[string]bool{}
	for len(ordered) < len(required) {
		progressed := false
		for _, decl := range explore.JoinedTables {
			join, ok := required[decl.Table]
			if !ok || emitted[decl.Table] || !dependenciesMet(join, emitted) {
				continue
			}
			ordered = append(ordered, *join)
			emitted[decl.Table] = true
			progressed = true
			break
		}
		if !progressed {
			for _, decl := range explore.JoinedTables {
				if required[decl.Table] != nil && !emitted[decl.Table] {
					return nil, domain.ErrMissingJoin(decl.Table, "join to table %q is part of a dependency cycle", decl.Table)
				}
			}
		}
	}
	return ordered, nil
}

func dependenciesMet(j *CompiledJoin, emitted map[string]bool) bool {
	for _, dep := range j.DependsOn {
		if !emitted[dep] {
			return false
		}
	}
	return true
}
