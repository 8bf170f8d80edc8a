// Package config loads the engine's subsystem configuration via viper,
// following the teacher's flag/env/default layering pattern
// (internal/profile.Profile) but composing it from the reliability, cache,
// audit, health, executor and workflow subsystem configs instead of a single
// flat server profile.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/llm-devops/workflow-core/pkg/cache"
	"github.com/llm-devops/workflow-core/pkg/reliability/bulkhead"
	"github.com/llm-devops/workflow-core/pkg/reliability/health"
	"github.com/llm-devops/workflow-core/pkg/reliability/loadshed"
	"github.com/llm-devops/workflow-core/pkg/workflow"
	"github.com/llm-devops/workflow-core/pkg/workflow/executors"
)

// Config is the fully-resolved, validated configuration for one engine
// instance.
type Config struct {
	Mode string // dev, demo, or prod

	Bulkhead bulkhead.Config
	LoadShed loadshed.Config
	Health   health.Config

	CachePolicy     cache.Policy
	CacheCapacity   int
	CacheTTL        time.Duration
	SemanticEnabled bool
	Semantic        cache.SemanticConfig

	AuditLogPath    string
	AuditMaxBytes   int64
	AuditMaxBackups int
	AuditSQLiteDSN  string // empty disables the relational sink

	LLM            executors.LLMConfig
	EmbeddingModel string

	DefaultStepTimeout time.Duration
	FailureMode        workflow.FailurePolicy
}

// Load builds a Config by layering defaults, an optional YAML file at
// path (if non-empty), and environment variables prefixed WORKFLOWCORE_,
// the same precedence order the teacher's FromEnv/Validate pair uses,
// expressed through viper instead of raw os.Getenv calls.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("workflowcore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "reading config file %s", path)
		}
	}

	cfg := Config{
		Mode: v.GetString("mode"),
		Bulkhead: bulkhead.Config{
			MaxConcurrent:  v.GetInt("bulkhead.max_concurrent"),
			MaxQueueSize:   v.GetInt("bulkhead.max_queue_size"),
			AcquireTimeout: v.GetDuration("bulkhead.acquire_timeout"),
		},
		LoadShed: loadshed.Config{
			CPUThreshold:    v.GetFloat64("loadshed.cpu_threshold"),
			MemoryThreshold: v.GetFloat64("loadshed.memory_threshold"),
			QueueThreshold:  v.GetInt("loadshed.queue_threshold"),
			CheckInterval:   v.GetDuration("loadshed.check_interval"),
		},
		Health: health.Config{
			ProbeTimeout:      v.GetDuration("health.probe_timeout"),
			HealthyThreshold:  v.GetFloat64("health.healthy_threshold"),
			DegradedThreshold: v.GetFloat64("health.degraded_threshold"),
		},
		CachePolicy:     parsePolicy(v.GetString("cache.policy")),
		CacheCapacity:   v.GetInt("cache.capacity"),
		CacheTTL:        v.GetDuration("cache.ttl"),
		SemanticEnabled: v.GetBool("cache.semantic.enabled"),
		Semantic: cache.SemanticConfig{
			MaxEntries:          v.GetInt("cache.semantic.max_entries"),
			SimilarityThreshold: float32(v.GetFloat64("cache.semantic.similarity_threshold")),
			TTL:                 v.GetDuration("cache.semantic.ttl"),
		},
		AuditLogPath:    v.GetString("audit.file.path"),
		AuditMaxBytes:   v.GetInt64("audit.file.max_bytes"),
		AuditMaxBackups: v.GetInt("audit.file.max_backups"),
		AuditSQLiteDSN:  v.GetString("audit.sqlite.dsn"),
		LLM: executors.LLMConfig{
			Provider:    v.GetString("llm.provider"),
			Model:       v.GetString("llm.model"),
			APIKey:      v.GetString("llm.api_key"),
			BaseURL:     v.GetString("llm.base_url"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			Temperature: float32(v.GetFloat64("llm.temperature")),
		},
		EmbeddingModel: v.GetString("llm.embedding_model"),

		DefaultStepTimeout: v.GetDuration("workflow.default_step_timeout"),
		FailureMode:        workflow.FailurePolicy(v.GetString("workflow.failure_mode")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "dev")

	bh := bulkhead.DefaultConfig()
	v.SetDefault("bulkhead.max_concurrent", bh.MaxConcurrent)
	v.SetDefault("bulkhead.max_queue_size", bh.MaxQueueSize)
	v.SetDefault("bulkhead.acquire_timeout", bh.AcquireTimeout)

	ls := loadshed.DefaultConfig()
	v.SetDefault("loadshed.cpu_threshold", ls.CPUThreshold)
	v.SetDefault("loadshed.memory_threshold", ls.MemoryThreshold)
	v.SetDefault("loadshed.queue_threshold", ls.QueueThreshold)
	v.SetDefault("loadshed.check_interval", ls.CheckInterval)

	hc := health.DefaultConfig()
	v.SetDefault("health.probe_timeout", hc.ProbeTimeout)
	v.SetDefault("health.healthy_threshold", hc.HealthyThreshold)
	v.SetDefault("health.degraded_threshold", hc.DegradedThreshold)

	v.SetDefault("cache.policy", "lru")
	v.SetDefault("cache.capacity", 10000)
	v.SetDefault("cache.ttl", 10*time.Minute)

	sem := cache.DefaultSemanticConfig()
	v.SetDefault("cache.semantic.enabled", false)
	v.SetDefault("cache.semantic.max_entries", sem.MaxEntries)
	v.SetDefault("cache.semantic.similarity_threshold", float64(sem.SimilarityThreshold))
	v.SetDefault("cache.semantic.ttl", sem.TTL)

	v.SetDefault("audit.file.path", "workflowcore-audit.jsonl")
	v.SetDefault("audit.file.max_bytes", 50*1024*1024)
	v.SetDefault("audit.file.max_backups", 5)
	v.SetDefault("audit.sqlite.dsn", "")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")

	sched := workflow.DefaultSchedulerConfig()
	v.SetDefault("workflow.default_step_timeout", sched.DefaultStepTimeout)
	v.SetDefault("workflow.failure_mode", string(workflow.FailFast))
}

// parsePolicy maps a config string to a cache.Policy, defaulting to LRU for
// anything unrecognized.
func parsePolicy(s string) cache.Policy {
	switch strings.ToLower(s) {
	case "lfu":
		return cache.LFU
	case "fifo":
		return cache.FIFO
	case "ttl_only", "ttlonly", "ttl-only":
		return cache.TTLOnly
	default:
		return cache.LRU
	}
}

// Validate checks cross-field invariants that SetDefault can't express,
// mirroring the teacher's Profile.Validate pass over filesystem paths.
func (c *Config) Validate() error {
	switch c.Mode {
	case "dev", "demo", "prod":
	default:
		c.Mode = "dev"
	}

	switch c.FailureMode {
	case workflow.FailFast, workflow.IsolateFailures:
	default:
		c.FailureMode = workflow.FailFast
	}

	if c.AuditLogPath != "" {
		abs, err := filepath.Abs(c.AuditLogPath)
		if err != nil {
			return errors.Wrapf(err, "resolving audit log path %s", c.AuditLogPath)
		}
		c.AuditLogPath = abs
	}

	return nil
}
