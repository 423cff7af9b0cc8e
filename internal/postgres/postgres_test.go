package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/ganot/simcatalog/internal/domain/simulation"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig("postgres://localhost/catalog").Validate())

	cfg := DefaultConfig("")
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig("postgres://localhost/catalog")
	cfg.MaxIdleConns = cfg.MaxOpenConns + 1
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig("postgres://localhost/catalog")
	cfg.PingTimeout = 0
	require.Error(t, cfg.Validate())
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
}

func TestBuildListQuery(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildListQuery(simulation.ListOptions{
		Statuses:    []simulation.Status{simulation.StatusReady, simulation.StatusFailed},
		CreatedFrom: &from,
		NamePattern: "thermal",
		Limit:       10,
		Offset:      5,
	})

	require.Contains(t, query, "status IN ($1, $2)")
	require.Contains(t, query, "created_at >= $3")
	require.Contains(t, query, "name ILIKE $4")
	require.Contains(t, query, "LIMIT $5 OFFSET $6")
	require.Equal(t, []any{"READY", "FAILED", from, "%thermal%", 10, 5}, args)
}

func TestBuildListQueryWithoutFilters(t *testing.T) {
	query, args := buildListQuery(simulation.ListOptions{})
	require.NotContains(t, query, "WHERE")
	require.Empty(t, args)
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("boom")))
}
