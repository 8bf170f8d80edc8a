package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-devops/workflow-core/pkg/cache"
	"github.com/llm-devops/workflow-core/pkg/workflow"
)

func TestLoad_AppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Mode)
	assert.Equal(t, cache.LRU, cfg.CachePolicy)
	assert.Equal(t, 10000, cfg.CacheCapacity)
	assert.False(t, cfg.SemanticEnabled)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.True(t, filepath.IsAbs(cfg.AuditLogPath), "Validate should absolutize the default audit path")
	assert.Equal(t, 5*time.Minute, cfg.DefaultStepTimeout)
	assert.Equal(t, workflow.FailFast, cfg.FailureMode)
}

func TestLoad_ReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
mode: prod
cache:
  policy: lfu
  capacity: 500
bulkhead:
  max_concurrent: 7
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Mode)
	assert.Equal(t, cache.LFU, cfg.CachePolicy)
	assert.Equal(t, 500, cfg.CacheCapacity)
	assert.Equal(t, 7, cfg.Bulkhead.MaxConcurrent)
}

func TestLoad_EnvVarsOverrideDefaults(t *testing.T) {
	t.Setenv("WORKFLOWCORE_MODE", "demo")
	t.Setenv("WORKFLOWCORE_CACHE_POLICY", "fifo")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Mode)
	assert.Equal(t, cache.FIFO, cfg.CachePolicy)
}

func TestLoad_ReadsWorkflowSettingsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
workflow:
  default_step_timeout: 30s
  failure_mode: isolate_failures
loadshed:
  check_interval: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.DefaultStepTimeout)
	assert.Equal(t, workflow.IsolateFailures, cfg.FailureMode)
	assert.Equal(t, 250*time.Millisecond, cfg.LoadShed.CheckInterval)
}

func TestLoad_RejectsUnreadableFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	cases := map[string]cache.Policy{
		"lru":      cache.LRU,
		"LFU":      cache.LFU,
		"fifo":     cache.FIFO,
		"ttl_only": cache.TTLOnly,
		"ttlonly":  cache.TTLOnly,
		"ttl-only": cache.TTLOnly,
		"bogus":    cache.LRU,
		"":         cache.LRU,
	}
	for input, want := range cases {
		assert.Equal(t, want, parsePolicy(input), "input %q", input)
	}
}

func TestValidate_FallsBackToDevOnUnknownMode(t *testing.T) {
	cfg := Config{Mode: "nonsense"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "dev", cfg.Mode)
}

func TestValidate_AbsolutizesAuditLogPath(t *testing.T) {
	cfg := Config{Mode: "dev", AuditLogPath: "relative/audit.jsonl"}
	require.NoError(t, cfg.Validate())
	assert.True(t, filepath.IsAbs(cfg.AuditLogPath))
}

func TestValidate_LeavesEmptyAuditLogPathAlone(t *testing.T) {
	cfg := Config{Mode: "prod"}
	require.NoError(t, cfg.Validate())
	assert.Empty(t, cfg.AuditLogPath)
}

func TestValidate_FallsBackToFailFastOnUnknownFailureMode(t *testing.T) {
	cfg := Config{Mode: "dev", FailureMode: workflow.FailurePolicy("nonsense")}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, workflow.FailFast, cfg.FailureMode)
}
