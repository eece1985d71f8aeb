package mssql

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_SQLAuth(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "sql.internal",
		"port":     float64(14330),
		"user":     "reporter",
		"password": "pw",
		"database": "sales",
	})
	require.NoError(t, err)

	assert.Equal(t, AuthSQL, cfg.AuthMethod)
	assert.Equal(t, "reporter", cfg.Username)
	assert.Equal(t, 14330, cfg.Port)
	assert.Equal(t, "dbo", cfg.Schema)
	assert.Equal(t, "sqlserver", cfg.DriverName())
}

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, DefaultPort(), cfg.Port)
	assert.Equal(t, "sa", cfg.Username)
	assert.Equal(t, "master", cfg.Database)
	assert.True(t, cfg.Encrypt)
	assert.Equal(t, DefaultConnectionTimeout(), cfg.ConnectionTimeout)
}

func TestFromMap_ServicePrincipalAutoDetected(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":          "x.database.windows.net",
		"database":      "dw",
		"tenant_id":     "tenant",
		"client_id":     "client",
		"client_secret": "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, AuthServicePrincipal, cfg.AuthMethod)
	assert.Equal(t, "azuresql", cfg.DriverName())
}

func TestFromMap_ServicePrincipalMissingSecret(t *testing.T) {
	_, err := FromMap(map[string]any{"client_id": "client", "tenant_id": "tenant"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_secret")
}

func TestFromMap_InvalidAuthMethod(t *testing.T) {
	_, err := FromMap(map[string]any{"auth_method": "user_delegation"})
	assert.Error(t, err)
}

func TestFromMap_EncryptString(t *testing.T) {
	cfg, err := FromMap(map[string]any{"encrypt": "false", "trust_server_certificate": true})
	require.NoError(t, err)
	assert.False(t, cfg.Encrypt)
	assert.True(t, cfg.TrustServerCertificate)
}

func TestBuildDSN_SQLAuthEscapesPassword(t *testing.T) {
	dsn := buildDSN(&Config{
		Host: "sql.example.com", Port: 1433, Database: "db", AuthMethod: AuthSQL,
		Username: "u", Password: "p@ss/word", Encrypt: true, ConnectionTimeout: 15,
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss/word", pw)
	assert.Equal(t, "db", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("encrypt"))
	assert.Equal(t, "15", u.Query().Get("connection timeout"))
}

func TestBuildDSN_ServicePrincipal(t *testing.T) {
	dsn := buildDSN(&Config{
		Host: "x.database.windows.net", Port: 1433, Database: "dw", AuthMethod: AuthServicePrincipal,
		TenantID: "tenant", ClientID: "client", ClientSecret: "secret",
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Nil(t, u.User)
	assert.Equal(t, "ActiveDirectoryServicePrincipal", u.Query().Get("fedauth"))
	assert.Equal(t, "client@tenant", u.Query().Get("user id"))
}

func TestQuoteName(t *testing.T) {
	assert.Equal(t, "[users]", quoteName("users"))
	assert.Equal(t, "[a]]b]", quoteName("a]b"))
	assert.Equal(t, "[dbo].[order-items]", buildFullyQualifiedName("dbo", "order-items"))
}
