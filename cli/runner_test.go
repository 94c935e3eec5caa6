package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/authsession/mock"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestRun_SessionLifecycle(t *testing.T) {
	server := mock.NewHTTPTestAuthServer()
	defer server.Close()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("AUTH_BASE_URL", server.URL)
	t.Setenv("STORE_KIND", "file")
	t.Setenv("STORE_URL", filepath.Join(t.TempDir(), "credentials.json"))
	t.Setenv("LOG_LEVEL", "error")

	output, err := execute(t, "status")
	require.NoError(t, err)
	assert.Equal(t, "unauthenticated\n", output)

	output, err = execute(t, "register", "-n", "alice", "-p", "secret", "-e", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "registered alice\n", output)

	output, err = execute(t, "status")
	require.NoError(t, err)
	assert.Equal(t, "authenticated\n", output)

	server.ExpireAccessTokens()
	output, err = execute(t, "--metrics", "get", "/api/resource")
	require.NoError(t, err)
	assert.Contains(t, output, "200 OK")
	assert.Contains(t, output, "This is a protected resource")
	assert.Contains(t, output, "authsession_refresh_total{outcome=success} 1")
	assert.Equal(t, 1, server.Calls(mock.RefreshPath))

	output, err = execute(t, "logout")
	require.NoError(t, err)
	assert.Equal(t, "logged out\n", output)

	output, err = execute(t, "status")
	require.NoError(t, err)
	assert.Equal(t, "unauthenticated\n", output)

	_, err = execute(t, "login", "-n", "alice", "-p", "wrong")
	assert.EqualError(t, err, "login failed: invalid credentials")

	output, err = execute(t, "login", "-n", "alice", "-p", "secret")
	require.NoError(t, err)
	assert.Equal(t, "logged in as alice\n", output)
}

func TestRun_Errors(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("AUTH_BASE_URL", "http://localhost:1")
	t.Setenv("STORE_KIND", "memory")

	_, err := execute(t)
	assert.Error(t, err)

	_, err = execute(t, "login", "-n", "alice")
	assert.Error(t, err)

	t.Setenv("STORE_KIND", "sqlite")
	_, err = execute(t, "status")
	assert.Error(t, err)
}

func TestRun_BaseURLFlagDoesNotChangeEnvironment(t *testing.T) {
	server := mock.NewHTTPTestAuthServer()
	defer server.Close()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("AUTH_BASE_URL", "")
	t.Setenv("STORE_KIND", "memory")

	_, err := execute(t, "status")
	assert.ErrorContains(t, err, "base url was empty")

	output, err := execute(t, "--url", server.URL, "status")
	require.NoError(t, err)
	assert.Equal(t, "unauthenticated\n", output)
	assert.Empty(t, os.Getenv("AUTH_BASE_URL"))
}
