package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"metricql/internal/domain"
)

// ExploreRepo stores compiled explores as JSON documents keyed by project and name.
type ExploreRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewExploreRepo creates an ExploreRepo.
func NewExploreRepo(db *sql.DB) *ExploreRepo {
	return &ExploreRepo{db: db, now: time.Now}
}

var _ domain.ExploreRepository = (*ExploreRepo)(nil)

// GetExplore loads one explore.
func (r *ExploreRepo) GetExplore(ctx context.Context, projectID, name string) (*domain.Explore, error) {
	query, args, err := sqlBuilder.Select("explore_json").
		From("explores").
		Where(sq.Eq{"project_id": projectID, "name": name}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var raw string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return nil, mapDBError(err, "explore %q in project %q", name, projectID)
	}
	var explore domain.Explore
	if err := json.Unmarshal([]byte(raw), &explore); err != nil {
		return nil, fmt.Errorf("decode explore %q: %w", name, err)
	}
	return &explore, nil
}

// SaveExplore inserts the explore or replaces the stored version of the same name.
func (r *ExploreRepo) SaveExplore(ctx context.Context, projectID string, explore *domain.Explore) error {
	raw, err := json.Marshal(explore)
	if err != nil {
		return fmt.Errorf("encode explore %q: %w", explore.Name, err)
	}
	now := formatTime(r.now())

	query, args, err := sqlBuilder.Insert("explores").
		Columns("id", "project_id", "name", "label", "target_database", "explore_json", "created_at", "updated_at").
		Values(domain.NewID(), projectID, explore.Name, explore.Label, string(explore.TargetDatabase), string(raw), now, now).
		Suffix(`ON CONFLICT (project_id, name) DO UPDATE SET
			label = excluded.label,
			target_database = excluded.target_database,
			explore_json = excluded.explore_json,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// ListExplores returns one page of explore summaries ordered by name, plus the total count.
func (r *ExploreRepo) ListExplores(ctx context.Context, projectID string, page domain.PageRequest) ([]domain.ExploreSummary, int64, error) {
	countQuery, countArgs, err := sqlBuilder.Select("COUNT(*)").
		From("explores").
		Where(sq.Eq{"project_id": projectID}).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := sqlBuilder.Select("id", "project_id", "name", "label", "target_database", "updated_at").
		From("explores").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("name").
		Limit(uint64(page.Limit())).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	summaries := make([]domain.ExploreSummary, 0)
	for rows.Next() {
		var (
			s         domain.ExploreSummary
			target    string
			updatedAt string
		)
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Label, &target, &updatedAt); err != nil {
			return nil, 0, err
		}
		s.TargetDatabase = domain.WarehouseType(target)
		s.UpdatedAt = parseTime(updatedAt)
		summaries = append(summaries, s)
	}
	return summaries, total, rows.Err()
}

// DeleteExplore removes an explore.
func (r *ExploreRepo) DeleteExplore(ctx context.Context, projectID, name string) error {
	query, args, err := sqlBuilder.Delete("explores").
		Where(sq.Eq{"project_id": projectID, "name": name}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("explore %q in project %q not found", name, projectID)
	}
	return nil
}
