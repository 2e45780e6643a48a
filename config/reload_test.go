package config

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReloadFixture(t *testing.T, yaml string) (*Reloader, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loanflow.yaml")
	writeFile(t, path, yaml)

	loader := newTestLoader(map[string]string{"JWT_SECRET": "reload-secret"}).WithConfigPath(path)
	cfg, err := loader.Load()
	require.NoError(t, err)
	return NewReloader(loader, cfg, nil), path
}

func TestReloader_ReloadAppliesChanges(t *testing.T) {
	r, path := newReloadFixture(t, "log:\n  level: info\n")
	initial := r.Current()

	var (
		mu      sync.Mutex
		changed []string
		oldLvl  string
		newLvl  string
	)
	r.OnReload(func(oldCfg, newCfg *Config, sections []string) {
		mu.Lock()
		defer mu.Unlock()
		changed, oldLvl, newLvl = sections, oldCfg.Log.Level, newCfg.Log.Level
	})

	writeFile(t, path, "log:\n  level: debug\n")
	require.NoError(t, r.Reload())

	assert.Equal(t, "debug", r.Current().Log.Level)
	assert.Equal(t, 2, r.Version())
	assert.Equal(t, "info", initial.Log.Level, "old snapshot is not mutated")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Log"}, changed)
	assert.Equal(t, "info", oldLvl)
	assert.Equal(t, "debug", newLvl)
}

func TestReloader_NoChangeSkipsCallbacks(t *testing.T) {
	r, _ := newReloadFixture(t, "log:\n  level: warn\n")

	called := false
	r.OnReload(func(*Config, *Config, []string) { called = true })

	require.NoError(t, r.Reload())
	assert.False(t, called)
	assert.Equal(t, 1, r.Version())
}

func TestReloader_InvalidConfigKeepsCurrent(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed yaml", "server: [\n"},
		{"fails validation", "server:\n  http_port: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, path := newReloadFixture(t, "server:\n  http_port: 5000\n")

			writeFile(t, path, tt.yaml)
			assert.Error(t, r.Reload())
			assert.Equal(t, 5000, r.Current().Server.HTTPPort)
			assert.Equal(t, 1, r.Version())
		})
	}
}

func TestReloader_CallbackPanicIsContained(t *testing.T) {
	r, path := newReloadFixture(t, "database:\n  url: postgres://a/db\n")

	second := false
	r.OnReload(func(*Config, *Config, []string) { panic("boom") })
	r.OnReload(func(*Config, *Config, []string) { second = true })

	writeFile(t, path, "database:\n  url: postgres://b/db\n")
	require.NoError(t, r.Reload())
	assert.True(t, second)
	assert.Equal(t, "postgres://b/db", r.Current().Database.URL)
}

func TestReloader_Watch(t *testing.T) {
	r, path := newReloadFixture(t, "app:\n  env: development\n")
	require.NoError(t, r.Watch(context.Background(), 10*time.Millisecond))
	defer r.Stop()

	assert.Error(t, r.Watch(context.Background(), 10*time.Millisecond))

	writeFile(t, path, "app:\n  env: production\n")
	assert.Eventually(t, func() bool {
		return r.Current().App.Env == "production"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestReloader_WatchWithoutFile(t *testing.T) {
	cfg := DefaultConfig()
	r := NewReloader(newTestLoader(nil), cfg, nil)
	assert.Error(t, r.Watch(context.Background(), time.Second))
	r.Stop()
}

func TestChangedSections(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	assert.Empty(t, changedSections(a, b))

	b.Redis.Enabled = true
	b.Server.CORSAllowedOrigins = []string{"https://app.example.com"}
	assert.Equal(t, []string{"Server", "Redis"}, changedSections(a, b))
}
