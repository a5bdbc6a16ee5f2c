package warehouse

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"metricql/internal/domain"
)

// MapDatabaseType maps a driver column type name to a dimension type.
// Wrapper types such as Nullable(...) and LowCardinality(...) are unwrapped.
func MapDatabaseType(dbType string) domain.DimensionType {
	base := strings.ToUpper(strings.TrimSpace(dbType))
	for unwrapped := true; unwrapped; {
		unwrapped = false
		for _, wrapper := range []string{"NULLABLE(", "LOWCARDINALITY("} {
			if strings.HasPrefix(base, wrapper) && strings.HasSuffix(base, ")") {
				base = base[len(wrapper) : len(base)-1]
				unwrapped = true
			}
		}
	}
	if i := strings.IndexAny(base, "( "); i >= 0 {
		base = base[:i]
	}

	switch {
	case base == "":
		return domain.DimensionString
	case base == "BOOL" || base == "BOOLEAN":
		return domain.DimensionBoolean
	case base == "DATE" || base == "DATE32":
		return domain.DimensionDate
	case strings.HasPrefix(base, "TIMESTAMP"), strings.HasPrefix(base, "DATETIME"):
		return domain.DimensionTimestamp
	case base == "INTERVAL":
		return domain.DimensionString
	case strings.HasPrefix(base, "INT"), strings.HasPrefix(base, "UINT"),
		strings.HasSuffix(base, "INT"), strings.HasSuffix(base, "INTEGER"),
		strings.HasPrefix(base, "FLOAT"), strings.HasPrefix(base, "DECIMAL"),
		base == "DOUBLE", base == "REAL", base == "NUMERIC", base == "NUMBER":
		return domain.DimensionNumber
	}
	return domain.DimensionString
}

// normalizeValue converts driver values into the plain Go types the
// formatter understands.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case [16]byte:
		return uuid.UUID(t).String()
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	}
	return v
}
