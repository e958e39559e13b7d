package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "BloodLink/internal/handler"
	"BloodLink/internal/listeners"
	"BloodLink/internal/models"
	"BloodLink/internal/poller"
	"BloodLink/pkg/backup"
	"BloodLink/pkg/cache"
	"BloodLink/pkg/config"
	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/llm"
	"BloodLink/pkg/logger"
	"BloodLink/pkg/metrics"
	"BloodLink/pkg/middleware"
	"BloodLink/pkg/notification"
	"BloodLink/pkg/scheduler"
	"BloodLink/pkg/sse"
	stores "BloodLink/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bloodlink",
		Short: "BloodLink hospital and blood bank services",
		Long:  `Runs the hospital and blood bank services over flat CSV/JSON tables, with background sync between the two.`,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(backupCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("role") {
		cfg.Role, _ = flags.GetString("role")
	}
	if flags.Changed("addr") {
		cfg.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	switch cfg.Role {
	case config.RoleHospital, config.RoleBank, config.RoleAll:
	default:
		return nil, fmt.Errorf("unknown role %q", cfg.Role)
	}
	if err := logger.Init(cfg.Log, cfg.Mode, "bloodlink-"+cfg.Role); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service and its background jobs",
		RunE:  runServe,
	}
	cmd.Flags().String("role", config.RoleAll, "hospital, bank or all")
	cmd.Flags().String("addr", ":5002", "listen address")
	cmd.Flags().String("data-dir", "data", "directory holding the tables")
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill empty inventory, blood bank and credential tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			store, err := flatstore.New(cfg.DataDir)
			if err != nil {
				return err
			}
			written, err := models.NewRepo(store, nil).Seed(cfg.HospitalID, cfg.BankID)
			if err != nil {
				return err
			}
			for table, n := range written {
				fmt.Printf("%s: %d rows\n", table, n)
			}
			return nil
		},
	}
	cmd.Flags().String("data-dir", "data", "directory holding the tables")
	return cmd
}

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the data directory once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			path, err := newBackup(cfg).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
	cmd.Flags().String("data-dir", "data", "directory holding the tables")
	return cmd
}

func newBackup(cfg *config.Config) *backup.Backup {
	b := backup.New(cfg.DataDir, cfg.BackupPath)
	// a nil *MinioStore must not become a non-nil Store
	if m := stores.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL); m != nil {
		b.Uploader = m
	}
	return b
}

// notePublisher counts every persisted notification and fans it out to the
// SSE subscribers.
type notePublisher struct {
	hub     *sse.Hub
	metrics *metrics.Metrics
}

func (p notePublisher) Publish(scope string, e notification.Entry) {
	p.metrics.RecordNotification(scope)
	p.hub.Publish(scope, e)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	m := metrics.NewMetrics()
	metrics.SetGlobal(m)

	store, err := flatstore.New(cfg.DataDir, flatstore.WithObserver(m))
	if err != nil {
		return fmt.Errorf("open data dir: %w", err)
	}
	hub := sse.NewHub(30 * time.Second)
	notes := notification.NewLog(store, notification.WithPublisher(notePublisher{hub: hub, metrics: m}))
	repo := models.NewRepo(store, notes,
		models.WithThreshold(cfg.LowStockThresholdFor),
		models.WithCaps(models.Caps{Global: cfg.NotificationCap, LowStock: cfg.LowStockLogCap, Donor: cfg.DonorLogCap}),
		models.WithLocalAlerts(cfg.ServesHospital()),
	)
	if written, err := repo.Seed(cfg.HospitalID, cfg.BankID); err != nil {
		logger.Warn("seed tables", zap.Error(err))
	} else if len(written) > 0 {
		logger.Info("seeded empty tables", zap.Any("rows", written))
	}

	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer c.Close()

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:       cfg.RateLimit,
		AddHeaders: true,
		SkipPaths:  []string{cfg.APIPrefix + "/notifications/stream", cfg.APIPrefix + "/system/health"},
	}, nil).WithObserver(middleware.NewPrometheusObserver(m.Registry()))

	opLog := middleware.NewOperationLogger(store, cfg.GeoIPDB)
	defer opLog.Close()

	deps := handlers.Deps{
		Config:  cfg,
		Repo:    repo,
		Hub:     hub,
		Metrics: m,
		Limiter: limiter,
		Cache:   c,
		OpLog:   opLog,
	}
	lg := logrus.New()
	lg.SetLevel(logrus.WarnLevel)
	if a := llm.NewLLMHandler(cfg.LLMApiKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMTimeout, lg); a != nil {
		deps.Assistant = a
	}

	listeners.InitAlertListeners(repo, notification.NewMailer(cfg.Mail), cfg.Mail.Timeout, func(err error) {
		if err != nil {
			logger.Warn("donation confirmation mail", zap.Error(err))
		}
	})

	// background jobs
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewWithContext(ctx)
	pollOpts := []poller.Option{
		poller.WithNotes(notes),
		poller.WithMetrics(m),
		poller.WithTimeout(cfg.PollTimeout),
	}
	// a hospital process opens its alerts locally, so only a bank on its own
	// polls for requests; a combined process shares every table
	if cfg.Role == config.RoleBank {
		p := poller.NewRequestPoller(cfg.HospitalURL, cfg.APIPrefix, cfg.PeerSecret, repo,
			append(pollOpts, poller.WithDeduper(newDeduper(cfg, c, "requests")))...)
		p.Start(sched, cfg.PollInterval)
	}
	if cfg.Role == config.RoleHospital {
		p := poller.NewResponsePoller(cfg.BankURL, cfg.APIPrefix, cfg.PeerSecret, repo,
			append(pollOpts, poller.WithDeduper(newDeduper(cfg, c, "responses")))...)
		p.Start(sched, cfg.PollInterval)
	}
	sched.Every(30*time.Second, scheduler.FuncJob(func(ctx context.Context) {
		m.SetSystemStats(metrics.CollectSystemStats(ctx, cfg.DataDir))
	}))

	cr := scheduler.NewCron(nil)
	if cfg.SimulatorEnabled && cfg.ServesBank() {
		sim := models.NewSimulator(repo, cfg.BankID, time.Now().UnixNano())
		if _, err := cr.AddWithCtx(cfg.SimulatorSchedule, func(ctx context.Context) {
			if _, err := sim.Run(ctx); err != nil {
				logger.Warn("simulated alert", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule simulator: %w", err)
		}
	}
	if cfg.BackupEnabled {
		if err := backup.StartBackupScheduler(cr, cfg.BackupSchedule, newBackup(cfg)); err != nil {
			return fmt.Errorf("schedule backup: %w", err)
		}
	}
	cr.Start()

	gin.SetMode(cfg.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery(), logger.GinLogger())
	handlers.NewHandlers(deps).Register(engine)

	srv := &http.Server{Addr: cfg.Addr, Handler: engine}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("role", cfg.Role))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	sched.Stop()
	cr.Stop()
	return nil
}

func newDeduper(cfg *config.Config, c cache.Cache, name string) poller.Deduper {
	if cfg.PollerSeenStore == "cache" {
		return poller.NewCacheDeduper(c, name)
	}
	return poller.NewMemoryDeduper()
}
