package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/chembot/internal/bot"
	"github.com/example/chembot/internal/config"
	"github.com/example/chembot/internal/database"
	"github.com/example/chembot/internal/excel"
	"github.com/example/chembot/internal/logger"
	"github.com/example/chembot/internal/quiz"
	"github.com/example/chembot/internal/report"
	"github.com/example/chembot/internal/scheduler"
	"github.com/example/chembot/internal/server"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("bot exited with error", "error", err)
		log.Sync()
		os.Exit(1)
	}
	log.Info("bot stopped successfully")
	log.Sync()
}

func run(cfg *config.Config, log *logger.Logger) error {
	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	users := database.NewUserRepository(db)
	blocks := database.NewBlockedUserRepository(db)
	curriculum := database.NewCurriculumRepository(db)
	questions := database.NewQuestionRepository(db)
	sessions := database.NewQuizSessionRepository(db)
	stats := database.NewStatisticsRepository(db)

	snapshots, closeSnapshots, err := snapshotStore(ctx, cfg.Snapshot, log)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	loc, err := time.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		return fmt.Errorf("invalid report timezone: %w", err)
	}
	var mailer report.Mailer
	if cfg.Email.Enabled() {
		mailer = report.NewSMTPMailer(report.MailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			To:       cfg.Email.AdminEmail,
		})
	} else {
		log.Info("email delivery disabled, reports go to Telegram only")
	}
	reports := report.NewService(stats, cfg.Report.Dir, loc, mailer, log)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("failed to create bot api: %w", err)
	}
	log.Info("authorized on telegram", "account", api.Self.UserName)

	botConfig := bot.DefaultConfig()
	botConfig.AdminUserIDs = cfg.AdminUserIDs
	botConfig.WebhookURL = cfg.HTTP.WebhookEndpoint()
	if len(botConfig.AdminUserIDs) == 0 {
		log.Warn("no admin users configured, admin commands are unavailable")
	}

	engine := quiz.NewEngine(quiz.Config{
		QuestionTimeout: cfg.Quiz.QuestionTimeout,
		FeedbackDelay:   cfg.Quiz.FeedbackDelay,
	}, quiz.Deps{
		Questions: questions,
		Recorder:  sessions,
		Presenter: bot.NewPresenter(api, botConfig, log),
		Snapshots: snapshots,
		Logger:    log,
	})

	jobs := scheduler.New(reports, sessions, loc, log)
	b := bot.New(api, botConfig, bot.Deps{
		Quiz:       engine,
		Users:      users,
		Blocks:     blocks,
		Curriculum: curriculum,
		Stats:      stats,
		Reports:    reports,
		Importer:   excel.NewImporter(curriculum, questions),
		Schedule:   jobs,
		Logger:     log,
	})
	reports.SetNotifier(b)

	resumed, err := engine.Recover(ctx)
	if err != nil {
		log.Warn("failed to resume quizzes", "error", err)
	} else if resumed > 0 {
		log.Info("resumed quizzes", "count", resumed)
	}

	if err := jobs.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer jobs.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if botConfig.WebhookURL != "" {
		// registers the webhook and returns, updates then come through the http server
		if err := b.Start(gctx); err != nil {
			return err
		}
	} else {
		g.Go(func() error {
			return b.Start(gctx)
		})
	}

	if cfg.HTTP.Addr != "" {
		if cfg.LogMode == "production" || cfg.LogMode == "prod" {
			gin.SetMode(gin.ReleaseMode)
		}
		routerCfg := server.RouterConfig{DB: db, Logger: log}
		if cfg.HTTP.WebhookURL != "" {
			routerCfg.Dispatcher = b
			routerCfg.WebhookSecret = cfg.HTTP.WebhookSecret
		}
		srv := server.New(cfg.HTTP.Addr, server.NewRouter(routerCfg), log)
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info("bot started, press Ctrl+C to stop")
	<-gctx.Done()
	log.Info("shutting down")

	b.Stop()
	engine.Shutdown()
	return g.Wait()
}

// snapshotStore persists in-flight quizzes in Redis when configured, otherwise in a local file
func snapshotStore(ctx context.Context, cfg config.SnapshotConfig, log *logger.Logger) (quiz.SnapshotStore, func(), error) {
	if cfg.RedisAddr == "" {
		log.Info("saving quiz snapshots to file", "path", cfg.File)
		return quiz.NewFileSnapshotStore(cfg.File), func() {}, nil
	}

	store := quiz.NewRedisSnapshotStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("saving quiz snapshots to redis", "addr", cfg.RedisAddr)
	return store, func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}, nil
}
