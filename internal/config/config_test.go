package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/pipeline
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 0.6, cfg.Classification.MinRelevance)
	assert.Equal(t, 10, cfg.Outreach.MaxSendsPerDay)
	assert.Equal(t, 0.75, cfg.Outreach.MinScore)
	assert.Equal(t, int64(120), cfg.Outreach.MinDelaySeconds)
	assert.Equal(t, int64(600), cfg.Outreach.MaxDelaySeconds)
	assert.Equal(t, 3, cfg.Outreach.MaxSendAttempts)
	assert.Equal(t, int64(72), cfg.Replies.NoReplyTTLHours)
	assert.Equal(t, 7, cfg.Janitor.DeadChannelAgeDays)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/pipeline
outreach:
  max_sends_per_day: 25
  min_score: 0.8
classification:
  min_relevance: 0.5
  target_stacks: [go, python]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Outreach.MaxSendsPerDay)
	assert.Equal(t, 0.8, cfg.Outreach.MinScore)
	assert.Equal(t, 0.5, cfg.Classification.MinRelevance)
	assert.Equal(t, []string{"go", "python"}, cfg.Classification.TargetStacks)
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
`)

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "database.url")
}

func TestLoadConfigRejectsNonPositiveBudget(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/pipeline
outreach:
  max_sends_per_day: 0
`)

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "max_sends_per_day")
}

func TestLoadConfigRejectsInvertedDelayRange(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/pipeline
outreach:
  min_delay_seconds: 600
  max_delay_seconds: 120
`)

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "min_delay_seconds")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
