package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/luach/config"
	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/pkg/logger"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "luach.db"))
	t.Setenv("LEDGER_PATH", filepath.Join(dir, "ledger.db"))
	cfg, err := config.Load("")
	require.NoError(t, err)

	a, err := New(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestWiring(t *testing.T) {
	a := newTestApp(t)
	assert.Nil(t, a.Bot)
	assert.Nil(t, a.CalDAV)

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPassAndDeviceCheckWithoutOccasions(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)

	u := &domain.User{Name: "Rivka"}
	require.NoError(t, a.Storage.CreateUser(ctx, u))

	res := a.Scheduler.RunOnce(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Skipped)

	var buf bytes.Buffer
	rep, err := a.TerminalReminder(&buf).Check(ctx, nil, nil)
	require.NoError(t, err)
	assert.True(t, rep.Due.Empty())
	assert.Empty(t, buf.String())

	visible, err := a.Banner().Visible(ctx, rep)
	require.NoError(t, err)
	assert.False(t, visible)
}
