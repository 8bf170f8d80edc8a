package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/llm-devops/workflow-core/internal/config"
	"github.com/llm-devops/workflow-core/internal/version"
	"github.com/llm-devops/workflow-core/pkg/audit"
	"github.com/llm-devops/workflow-core/pkg/audit/sinks"
	"github.com/llm-devops/workflow-core/pkg/cache"
	"github.com/llm-devops/workflow-core/pkg/metrics"
	"github.com/llm-devops/workflow-core/pkg/reliability/bulkhead"
	"github.com/llm-devops/workflow-core/pkg/reliability/health"
	"github.com/llm-devops/workflow-core/pkg/reliability/loadshed"
	"github.com/llm-devops/workflow-core/pkg/workflow"
	"github.com/llm-devops/workflow-core/pkg/workflow/executors"
)

var rootCmd = &cobra.Command{
	Use:   "workflowcorectl",
	Short: "Submits and drives a workflow definition through the DAG execution engine.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		_ = godotenv.Load()
		return nil
	},
	RunE: runWorkflow,
}

func init() {
	rootCmd.Flags().String("workflow", "", "path to a YAML workflow definition (required)")
	rootCmd.Flags().String("config", "", "path to a YAML config file (optional; defaults apply otherwise)")
	rootCmd.Flags().String("metrics-addr", "", "if set, serve Prometheus metrics and health checks on this address")

	_ = viper.BindPFlag("workflow", rootCmd.Flags().Lookup("workflow"))
	_ = viper.BindPFlag("config", rootCmd.Flags().Lookup("config"))
	_ = viper.BindPFlag("metrics-addr", rootCmd.Flags().Lookup("metrics-addr"))
}

func runWorkflow(_ *cobra.Command, _ []string) error {
	workflowPath := viper.GetString("workflow")
	if workflowPath == "" {
		return fmt.Errorf("--workflow is required")
	}

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return err
	}

	wf, err := loadWorkflowFile(workflowPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bulkheads := bulkhead.NewRegistry(cfg.Bulkhead)

	shedder := loadshed.New(cfg.LoadShed, loadshed.NewDefaultSampler(), bulkheads.TotalWaiters)

	auditLog := audit.NewEventLog(sinks.NewLogSink(nil))
	if cfg.AuditLogPath != "" {
		fileSink, err := sinks.NewFileSink(cfg.AuditLogPath, cfg.AuditMaxBytes, cfg.AuditMaxBackups)
		if err != nil {
			slog.Warn("audit file sink disabled", "error", err)
		} else {
			auditLog.Register(fileSink)
			defer fileSink.Close()
		}
	}
	if cfg.AuditSQLiteDSN != "" {
		sqlSink, err := sinks.NewSQLSink(cfg.AuditSQLiteDSN)
		if err != nil {
			slog.Warn("audit sqlite sink disabled", "error", err)
		} else {
			auditLog.Register(sqlSink)
			defer sqlSink.Close()
		}
	}

	metricsReg := metrics.NewRegistry(metrics.DefaultConfig())

	healthAggregator := health.New(cfg.Health,
		health.NewProbe("bulkheads", 1.0, true, func(_ context.Context) health.Result {
			return health.Result{Component: "bulkheads", Status: health.Healthy, CheckedAt: time.Now()}
		}),
		health.NewProbe("load", 1.0, false, func(_ context.Context) health.Result {
			level := shedder.CurrentLevel()
			status := health.Healthy
			if level >= loadshed.LevelHigh {
				status = health.Degraded
			}
			return health.Result{Component: "load", Status: status, Message: level.String(), CheckedAt: time.Now()}
		}),
	)

	executorRegistry := workflow.NewRegistry()
	executorRegistry.Register("echo", executors.Echo)
	executorRegistry.Register("sleep", executors.Sleep)
	if cfg.LLM.APIKey != "" {
		resultCache := cache.New[string](cfg.CacheCapacity, cfg.CacheTTL, cfg.CachePolicy)
		resultCache.StartSweeping(time.Minute)
		defer resultCache.Close()

		var semanticCache *cache.SemanticCache
		if cfg.SemanticEnabled {
			cfg.Semantic.Embeddings = executors.NewOpenAIEmbeddingService(executors.EmbeddingConfig{
				Model:   cfg.EmbeddingModel,
				APIKey:  cfg.LLM.APIKey,
				BaseURL: cfg.LLM.BaseURL,
			})
			semanticCache = cache.NewSemanticCache(cfg.Semantic)
		}

		llmExecutor := executors.NewLLMExecutor(cfg.LLM, resultCache, semanticCache)
		executorRegistry.Register("llm_call", llmExecutor.Execute)
	}

	schedulerConfig := workflow.DefaultSchedulerConfig()
	schedulerConfig.DefaultStepTimeout = cfg.DefaultStepTimeout

	manager := workflow.NewManager(executorRegistry,
		workflow.WithBulkheadRegistry(bulkheads),
		workflow.WithLoadShedder(shedder),
		workflow.WithAuditLog(auditLog),
		workflow.WithSchedulerConfig(schedulerConfig),
		workflow.WithDefaultFailureMode(cfg.FailureMode),
	)

	var httpServer *http.Server
	if addr := viper.GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsReg.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			agg := healthAggregator.Check(r.Context())
			metricsReg.HealthScore.Set(agg.Score)
			_ = json.NewEncoder(w).Encode(agg)
		})
		httpServer = &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer httpServer.Shutdown(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, terminationSignals...)
	go func() {
		<-sigCh
		slog.Info("shutdown signal received, cancelling workflow")
		cancel()
	}()

	workflowID, err := manager.Submit(ctx, wf, "")
	if err != nil {
		return err
	}

	slog.Info("workflow submitted", "workflow_id", workflowID, "version", version.String())

	for {
		snapshot, err := manager.Status(workflowID)
		if err != nil {
			return err
		}
		if snapshot.Status == workflow.WorkflowRunning || snapshot.Status == workflow.WorkflowPaused {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		out, err := snapshot.MarshalSnapshot()
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
