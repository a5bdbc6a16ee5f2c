package domain

import (
	"context"
	"time"
)

// ExploreSummary is the listing form of a stored explore.
type ExploreSummary struct {
	ID             string        `json:"id"`
	ProjectID      string        `json:"projectId"`
	Name           string        `json:"name"`
	Label          string        `json:"label,omitempty"`
	TargetDatabase WarehouseType `json:"targetDatabase"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// ExploreRepository stores compiled explores per project.
type ExploreRepository interface {
	GetExplore(ctx context.Context, projectID, name string) (*Explore, error)
	SaveExplore(ctx context.Context, projectID string, explore *Explore) error
	ListExplores(ctx context.Context, projectID string, page PageRequest) ([]ExploreSummary, int64, error)
	DeleteExplore(ctx context.Context, projectID, name string) error
}

// UserAttributeRepository persists user attribute values.
type UserAttributeRepository interface {
	UserAttributeProvider
	SetUserAttribute(ctx context.Context, userID, name, value string) error
	DeleteUserAttribute(ctx context.Context, userID, name string) error
}
