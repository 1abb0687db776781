package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BaSui01/agentteam/agent/declarative"
	"github.com/BaSui01/agentteam/agent/persistence"
	"github.com/BaSui01/agentteam/agent/trace"
	"github.com/BaSui01/agentteam/config"
	"github.com/BaSui01/agentteam/internal/metrics"
	"github.com/BaSui01/agentteam/internal/server"
	"github.com/BaSui01/agentteam/internal/telemetry"
	"github.com/BaSui01/agentteam/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runOptions struct {
	teamPath   string
	task       string
	sessionID  string
	resume     string
	printTrace bool
	timeout    time.Duration
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a team on a task",
		Long: `Builds the team described by --team and runs it on --task. Use --resume
to continue an unfinished session from the configured trace store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.resume == "" && opts.task == "" {
				return errors.New("either --task or --resume is required")
			}
			if opts.resume != "" && opts.task != "" {
				return errors.New("--task and --resume are mutually exclusive")
			}
			return a.run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.teamPath, "team", "t", "", "Path to the team definition (YAML or JSON)")
	flags.StringVar(&opts.task, "task", "", "Task for the team")
	flags.StringVar(&opts.sessionID, "session", "", "Session id for the new run (generated when empty)")
	flags.StringVar(&opts.resume, "resume", "", "Resume the given session")
	flags.BoolVar(&opts.printTrace, "trace", false, "Print the execution trace as JSON after the answer")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Abort the run after this duration (0 disables)")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}

func (a *app) run(cmd *cobra.Command, opts runOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	otelProviders, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	collector, shutdownMetrics, err := startMetrics(cfg.Metrics, logger)
	if err != nil {
		return err
	}
	defer shutdownMetrics()

	store, err := persistence.NewTraceStore(cfg.Store,
		persistence.WithLogger(logger),
		persistence.WithMetrics(collector),
	)
	if err != nil {
		return fmt.Errorf("open trace store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing trace store failed", zap.Error(err))
		}
	}()

	provider, err := a.newProvider(cfg.LLM, logger)
	if err != nil {
		return err
	}
	provider = llm.NewMeteredProvider(
		llm.NewRateLimitedProvider(provider, cfg.LLM.RateLimitRPS, cfg.LLM.RateLimitBurst),
		collector,
	)

	def, err := declarative.NewYAMLLoader().LoadFile(opts.teamPath)
	if err != nil {
		return err
	}
	applyTeamDefaults(def, cfg)

	factory := declarative.NewTeamFactory(
		declarative.WithProvider("", provider),
		declarative.WithProvider(cfg.LLM.DefaultProvider, provider),
		declarative.WithApprover(approverPrompt, newPromptApprover(a.in, cmd.ErrOrStderr(), logger)),
		declarative.WithStore(store),
		declarative.WithMetrics(collector),
		declarative.WithLogger(logger),
	)
	eng, err := factory.Build(def)
	if err != nil {
		return err
	}

	var (
		answer string
		tr     *trace.Trace
	)
	if opts.resume != "" {
		answer, tr, err = eng.Resume(ctx, opts.resume)
	} else {
		answer, tr, err = eng.Run(ctx, opts.task, opts.sessionID)
	}

	out := cmd.OutOrStdout()
	if tr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", tr.SessionID())
	}
	if answer != "" {
		fmt.Fprintln(out, answer)
	}
	if opts.printTrace && tr != nil {
		data, mErr := tr.Marshal()
		if mErr != nil {
			return fmt.Errorf("marshal trace: %w", mErr)
		}
		fmt.Fprintln(out, string(data))
	}
	return err
}

// startMetrics 启用时注册 Prometheus 收集器并在后台暴露 /metrics
func startMetrics(cfg config.MetricsConfig, logger *zap.Logger) (*metrics.Collector, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollectorWithRegisterer(cfg.Namespace, reg, logger)

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.Addr
	srv := server.NewManager(server.NewMetricsHandler(reg), srvCfg, logger)
	if err := srv.Start(); err != nil {
		return nil, nil, err
	}
	return collector, func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}, nil
}

// applyTeamDefaults 用运行器配置填充团队定义中未设置的字段，嵌套团队同样处理
func applyTeamDefaults(def *declarative.TeamDefinition, cfg *config.Config) {
	if def == nil {
		return
	}
	// 没有决策任务的团队保持 none 协议
	if def.Protocol == "" && def.Mediator != nil {
		def.Protocol = cfg.Team.Protocol
	}
	if def.MaxIterations == 0 {
		def.MaxIterations = cfg.Team.MaxIterations
	}

	if md := def.Mediator; md != nil {
		if md.Model == "" {
			md.Model = cfg.LLM.Model
		}
		if md.FinishMarker == "" {
			md.FinishMarker = cfg.Team.FinishMarker
		}
		if md.MaxRetries == 0 {
			md.MaxRetries = cfg.Team.MaxRetries
		}
		if md.RetryDelay == 0 {
			md.RetryDelay = cfg.Team.RetryDelay
		}
		if md.HistoryWindow == 0 {
			md.HistoryWindow = cfg.Team.HistoryWindow
		}
	}

	for i := range def.Agents {
		a := &def.Agents[i]
		switch a.Type {
		case declarative.AgentTypeTeam:
			applyTeamDefaults(a.Team, cfg)
		case declarative.AgentTypeBidding:
		default:
			if a.Model == "" {
				a.Model = cfg.LLM.Model
			}
		}
	}
}
