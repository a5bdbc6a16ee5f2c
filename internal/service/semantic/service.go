// Package semantic compiles metric queries against explores and runs them.
package semantic

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"metricql/internal/domain"
)

// Service manages explores and compiles metric queries for users.
type Service struct {
	explores   domain.ExploreRepository
	attributes domain.UserAttributeProvider
	warehouse  domain.WarehouseClient
	compiler   *Compiler
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new semantic Service. attributes may be nil, in which
// case every user has no attributes.
func NewService(explores domain.ExploreRepository, attributes domain.UserAttributeProvider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		explores:   explores,
		attributes: attributes,
		compiler:   NewCompiler(),
		logger:     logger.With("component", "semantic"),
		now:        time.Now,
	}
}

// SaveExplore validates and stores a compiled explore.
func (s *Service) SaveExplore(ctx context.Context, projectID string, explore *domain.Explore) error {
	if strings.TrimSpace(projectID) == "" {
		return domain.ErrValidation("project id is required")
	}
	if err := explore.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(explore.Name) == "" {
		return domain.ErrValidation("explore name is required")
	}
	return s.explores.SaveExplore(ctx, projectID, explore)
}

// GetExplore returns the explore as seen by userID: dimensions the user's
// attributes do not grant are removed.
func (s *Service) GetExplore(ctx context.Context, userID, projectID, name string) (*domain.Explore, error) {
	explore, err := s.explores.GetExplore(ctx, projectID, name)
	if err != nil {
		return nil, err
	}
	if !ExploreHasFilteredAttribute(explore) {
		return explore, nil
	}
	attrs, err := s.userAttributes(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FilterExplore(explore, attrs), nil
}

// ListExplores lists the explores stored for a project.
func (s *Service) ListExplores(ctx context.Context, projectID string, page domain.PageRequest) ([]domain.ExploreSummary, int64, error) {
	return s.explores.ListExplores(ctx, projectID, page)
}

// DeleteExplore removes a stored explore.
func (s *Service) DeleteExplore(ctx context.Context, projectID, name string) error {
	return s.explores.DeleteExplore(ctx, projectID, name)
}

// CompileQuery loads the explore, applies the user's access filter and any
// dashboard filters, and compiles the query.
func (s *Service) CompileQuery(ctx context.Context, userID string, req QueryRequest) (*CompiledMetricQuery, error) {
	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, domain.ErrValidation("project id is required")
	}
	if strings.TrimSpace(req.Query.ExploreName) == "" {
		return nil, domain.ErrValidation("explore name is required")
	}

	explore, err := s.explores.GetExplore(ctx, req.ProjectID, req.Query.ExploreName)
	if err != nil {
		return nil, err
	}
	attrs, err := s.userAttributes(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ExploreHasFilteredAttribute(explore) {
		explore = FilterExplore(explore, attrs)
	}

	q := req.Query
	if req.DashboardFilters != nil {
		q = ApplyDashboardFilters(explore, q, *req.DashboardFilters, req.TileID)
	}

	compiled, err := s.compiler.Compile(explore, q, CompileOptions{
		Now:            s.now(),
		UserAttributes: attrs,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("compiled metric query",
		"explore", explore.Name,
		"user", userID,
		"joins", len(compiled.Joins),
	)
	return compiled, nil
}

func (s *Service) userAttributes(ctx context.Context, userID string) (domain.UserAttributeValueMap, error) {
	if s.attributes == nil || userID == "" {
		return domain.UserAttributeValueMap{}, nil
	}
	attrs, err := s.attributes.GetUserAttributes(ctx, userID)
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		attrs = domain.UserAttributeValueMap{}
	}
	return attrs, nil
}
