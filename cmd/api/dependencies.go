package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/atoyama/workmate-api/internal/billing"
	"github.com/atoyama/workmate-api/internal/domain/activity"
	"github.com/atoyama/workmate-api/internal/domain/notifications"
	"github.com/atoyama/workmate-api/internal/domain/reminders"
	"github.com/atoyama/workmate-api/internal/domain/reports"
	"github.com/atoyama/workmate-api/internal/domain/subscriptions"
	"github.com/atoyama/workmate-api/internal/domain/suggestions"
	"github.com/atoyama/workmate-api/internal/domain/tasks"
	"github.com/atoyama/workmate-api/internal/domain/users"
	"github.com/atoyama/workmate-api/internal/httpapi"
	"github.com/atoyama/workmate-api/internal/llm"
	"github.com/atoyama/workmate-api/internal/messaging"
	"github.com/atoyama/workmate-api/pkg/config"
	"github.com/atoyama/workmate-api/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	UserRepo         users.Repository
	TaskRepo         tasks.Repository
	SubscriptionRepo subscriptions.Repository
	SuggestionRepo   suggestions.Repository
	NotificationRepo notifications.Repository
	ReportRepo       reports.Repository

	// Integrations
	Stripe     *billing.StripeClient
	ChatClient llm.ChatClient
	Push       messaging.PushSender
	Email      messaging.EmailSender

	// Services
	UserService         users.Service
	TaskService         tasks.Service
	SubscriptionService subscriptions.Service
	WebhookService      subscriptions.WebhookService
	SuggestionService   suggestions.Service
	NotificationService notifications.Service
	ReportService       reports.Service
	ReminderService     *reminders.Service

	Dispatcher *activity.Dispatcher
	Cron       *cron.Cron

	// HTTP surface
	Server *httpapi.Server
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := deps.initIntegrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to init integrations: %w", err)
	}
	deps.initRepositories()
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	if err := deps.initScheduler(); err != nil {
		return nil, fmt.Errorf("failed to init scheduler: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initIntegrations wires the external providers. Push and email are
// optional: when unconfigured the notification service stores records
// and skips delivery.
func (d *Dependencies) initIntegrations(ctx context.Context) error {
	d.Stripe = billing.NewStripeClient(d.Config.Stripe.SecretKey, d.Config.Stripe.WebhookSecret)

	chatClient, err := llm.NewGeminiChatClient(ctx, d.Config.Gemini.APIKey, d.Config.Gemini.Model)
	if err != nil {
		return fmt.Errorf("failed to init chat client: %w", err)
	}
	d.ChatClient = chatClient

	if d.Config.FCM.CredentialsFile != "" {
		push, err := messaging.NewFCMSender(ctx, d.Config.FCM.CredentialsFile, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to init push sender: %w", err)
		}
		d.Push = push
	} else {
		d.Logger.Warn("FCM credentials not configured, push delivery disabled")
	}

	if d.Config.SMTP.Host != "" {
		email, err := messaging.NewSMTPSender(
			d.Config.SMTP.Host, d.Config.SMTP.Port,
			d.Config.SMTP.Username, d.Config.SMTP.Password, d.Config.SMTP.From,
		)
		if err != nil {
			return fmt.Errorf("failed to init email sender: %w", err)
		}
		d.Email = email
	} else {
		d.Logger.Warn("SMTP not configured, email delivery disabled")
	}

	d.Logger.Info("integrations initialized")
	return nil
}

func (d *Dependencies) initRepositories() {
	d.UserRepo = users.NewRepositoryImpl(d.DB.Pool, d.Logger)
	d.TaskRepo = tasks.NewRepositoryImpl(d.DB.Pool, d.Logger)
	d.SubscriptionRepo = subscriptions.NewRepositoryImpl(d.DB.Pool, d.Logger)
	d.SuggestionRepo = suggestions.NewRepositoryImpl(d.DB.Pool, d.Logger)
	d.NotificationRepo = notifications.NewRepositoryImpl(d.DB.Pool, d.Logger)
	d.ReportRepo = reports.NewRepositoryImpl(d.DB.Pool, d.Logger)

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initServices() error {
	d.SuggestionService = suggestions.NewServiceImpl(d.SuggestionRepo, d.UserRepo, d.ChatClient, d.Logger)

	processor := activity.NewProcessor(d.SuggestionService, d.Logger)
	d.Dispatcher = activity.NewDispatcher(processor, d.Logger)

	d.NotificationService = notifications.NewServiceImpl(d.NotificationRepo, d.UserRepo, d.Push, d.Email, d.Logger)

	d.UserService = users.NewServiceImpl(
		d.UserRepo,
		d.SuggestionService,
		d.Dispatcher,
		[]users.DependentDeleter{d.SubscriptionRepo, d.SuggestionRepo},
		d.Logger,
	)

	d.TaskService = tasks.NewServiceImpl(d.TaskRepo, d.NotificationService, d.SuggestionService, d.Dispatcher, d.Logger)
	d.SubscriptionService = subscriptions.NewServiceImpl(d.SubscriptionRepo, d.UserRepo, d.Stripe, d.SuggestionService, d.Dispatcher, d.Logger)
	d.WebhookService = subscriptions.NewWebhookServiceImpl(d.SubscriptionRepo, d.UserRepo, d.SuggestionService, d.Dispatcher, d.Logger)
	d.ReportService = reports.NewServiceImpl(d.ReportRepo, d.SuggestionService, d.Logger)

	loc, err := time.LoadLocation(d.Config.Reminder.Location)
	if err != nil {
		return fmt.Errorf("invalid reminder location %q: %w", d.Config.Reminder.Location, err)
	}
	d.ReminderService = reminders.NewService(d.TaskRepo, d.NotificationService, d.SuggestionService, loc, d.Logger)

	d.Server = httpapi.NewServer(
		d.UserService,
		d.TaskService,
		d.SubscriptionService,
		d.WebhookService,
		d.Stripe,
		d.SuggestionService,
		d.ReportService,
		d.NotificationService,
		d.Logger,
	)

	d.Logger.Info("services initialized")
	return nil
}

// initScheduler registers the daily reminder sweep in the configured
// timezone.
func (d *Dependencies) initScheduler() error {
	loc, err := time.LoadLocation(d.Config.Reminder.Location)
	if err != nil {
		return fmt.Errorf("invalid reminder location %q: %w", d.Config.Reminder.Location, err)
	}

	d.Cron = cron.New(cron.WithLocation(loc))
	_, err = d.Cron.AddFunc(d.Config.Reminder.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := d.ReminderService.RunDailySweep(ctx); err != nil {
			d.Logger.Error("reminder sweep failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder sweep: %w", err)
	}

	d.Logger.Info("scheduler initialized", slog.String("spec", d.Config.Reminder.Spec), slog.String("location", d.Config.Reminder.Location))
	return nil
}

// Close releases held resources in reverse dependency order.
func (d *Dependencies) Close() {
	if d.Cron != nil {
		d.Cron.Stop()
	}
	if d.Dispatcher != nil {
		d.Dispatcher.Wait()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
