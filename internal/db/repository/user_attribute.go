package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"metricql/internal/domain"
)

// UserAttributeRepo stores per-user attribute values.
type UserAttributeRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewUserAttributeRepo creates a UserAttributeRepo.
func NewUserAttributeRepo(db *sql.DB) *UserAttributeRepo {
	return &UserAttributeRepo{db: db, now: time.Now}
}

var _ domain.UserAttributeRepository = (*UserAttributeRepo)(nil)

// GetUserAttributes returns every attribute set for userID. Users without
// attributes get an empty map.
func (r *UserAttributeRepo) GetUserAttributes(ctx context.Context, userID string) (domain.UserAttributeValueMap, error) {
	query, args, err := sqlBuilder.Select("name", "value").
		From("user_attributes").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	attrs := domain.UserAttributeValueMap{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		attrs[name] = value
	}
	return attrs, rows.Err()
}

// SetUserAttribute sets or replaces one attribute value.
func (r *UserAttributeRepo) SetUserAttribute(ctx context.Context, userID, name, value string) error {
	if userID == "" || name == "" {
		return domain.ErrValidation("user id and attribute name are required")
	}
	query, args, err := sqlBuilder.Insert("user_attributes").
		Columns("user_id", "name", "value", "updated_at").
		Values(userID, name, value, formatTime(r.now())).
		Suffix("ON CONFLICT (user_id, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteUserAttribute removes one attribute value.
func (r *UserAttributeRepo) DeleteUserAttribute(ctx context.Context, userID, name string) error {
	query, args, err := sqlBuilder.Delete("user_attributes").
		Where(sq.Eq{"user_id": userID, "name": name}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return mapDBError(sql.ErrNoRows, "attribute %q of user %q", name, userID)
	}
	return nil
}
