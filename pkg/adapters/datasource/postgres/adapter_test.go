package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/apperrors"
)

func newTestConnector(t *testing.T) *Connector {
	t.Helper()
	cfg, err := FromMap(map[string]any{"host": "127.0.0.1", "port": 1, "ssl_mode": "disable"})
	require.NoError(t, err)
	return NewConnector(cfg, datasource.ConnectorDeps{})
}

func TestConnector_NotConnected(t *testing.T) {
	c := newTestConnector(t)
	ctx := context.Background()

	_, err := c.ListTables(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)

	_, err = c.GetTableSchema(ctx, "users")
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)

	_, err = c.FetchRows(ctx, "users", 10)
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)

	// Validation never runs ahead of the connection check.
	_, err = c.FetchRows(ctx, "bad name", 10)
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)
}

func TestConnector_DriverUnavailable(t *testing.T) {
	c := newTestConnector(t)
	c.driverName = "pgx-not-linked"

	err := c.Connect(context.Background())
	require.ErrorIs(t, err, apperrors.ErrDriverUnavailable)
	require.ErrorIs(t, err, apperrors.ErrConnectionFailure)
}

func TestConnector_ConnectionFailure(t *testing.T) {
	c := newTestConnector(t)

	err := c.Connect(context.Background())
	require.ErrorIs(t, err, apperrors.ErrConnectionFailure)
	assert.NotErrorIs(t, err, apperrors.ErrDriverUnavailable)

	_, err = c.ListTables(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrNotConnected, "failed connect leaves connector disconnected")
}

func TestConnector_CloseWithoutConnect(t *testing.T) {
	assert.NoError(t, newTestConnector(t).Close())
}

func TestRegistered(t *testing.T) {
	assert.True(t, datasource.IsRegistered("postgresql"))
	c, err := datasource.NewConnectorFactory(datasource.ConnectorDeps{}).NewConnector("pg", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.Type())
}
