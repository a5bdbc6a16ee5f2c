package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "metricql/internal/db"
	"metricql/internal/domain"
)

func TestUserAttributeRepo(t *testing.T) {
	writeDB, readDB := internaldb.OpenTestSQLite(t)
	writer := NewUserAttributeRepo(writeDB)
	reader := NewUserAttributeRepo(readDB)
	ctx := context.Background()

	attrs, err := reader.GetUserAttributes(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, attrs)
	assert.NotNil(t, attrs)

	require.NoError(t, writer.SetUserAttribute(ctx, "u1", "tier", "silver"))
	require.NoError(t, writer.SetUserAttribute(ctx, "u1", "region", "EU"))
	require.NoError(t, writer.SetUserAttribute(ctx, "u1", "tier", "gold"))
	require.NoError(t, writer.SetUserAttribute(ctx, "u2", "tier", "bronze"))

	attrs, err = reader.GetUserAttributes(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserAttributeValueMap{"tier": "gold", "region": "EU"}, attrs)

	require.NoError(t, writer.DeleteUserAttribute(ctx, "u1", "region"))
	attrs, err = reader.GetUserAttributes(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserAttributeValueMap{"tier": "gold"}, attrs)

	var notFound *domain.NotFoundError
	require.ErrorAs(t, writer.DeleteUserAttribute(ctx, "u1", "region"), &notFound)

	var validation *domain.ValidationError
	require.ErrorAs(t, writer.SetUserAttribute(ctx, "", "tier", "gold"), &validation)
}
