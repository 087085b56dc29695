package main

import (
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	"launtel-backend/lib/configutil"
	"launtel-backend/lib/notify"
	"launtel-backend/lib/planstore"
	"launtel-backend/lib/planstore/db"
	"launtel-backend/lib/scrapers/launtel"
	"launtel-backend/lib/serviceutil"
	"launtel-backend/lib/telemetry"
	"launtel-backend/services/planwatch"
)

func main() {
	telemetry.InitSlog(false)

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	var secrets Secrets
	if err := envconfig.Process("", &secrets); err != nil {
		serviceutil.Fatal("failed to read environment", err)
	}
	config.applySecrets(secrets)

	ctx := serviceutil.SignalContext()

	err = telemetry.SetupFromEnv(ctx, "planwatchd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer telemetry.Shutdown(ctx)
	telemetry.InstrumentPerfStats(ctx)

	slog.Info("opening database...")
	sqlite, err := config.Database.OpenDB(db.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}
	store := planstore.NewStore(sqlite)

	client, err := launtel.NewClient(launtel.ClientOptions{
		BaseUrl:  config.Portal.BaseUrl,
		Username: config.Portal.Username,
		Password: config.Portal.Password,
	})
	if err != nil {
		serviceutil.Fatal("failed to create portal client", err)
	}

	normal, err := parseInterval(config.Polling.NormalInterval, "normal_interval")
	if err != nil {
		serviceutil.Fatal("failed to parse config", err)
	}
	change, err := parseInterval(config.Polling.ChangeInterval, "change_interval")
	if err != nil {
		serviceutil.Fatal("failed to parse config", err)
	}
	policy := planwatch.FallbackToCached
	if config.Polling.FailFast {
		policy = planwatch.FailFast
	}

	coordinator := planwatch.NewCoordinator(client, planwatch.Options{
		ServiceID:       config.Service.ServiceID,
		AvcID:           config.Service.AvcID,
		UserID:          config.Service.UserID,
		DisplayName:     config.Service.DisplayName,
		NormalInterval:  normal,
		ChangeInterval:  change,
		Policy:          policy,
		LowBalanceFloor: config.Notify.LowBalanceFloor,
		Store:           &store,
		Notifier:        notify.NewNotifier(config.Notify.Smtp, config.Notify.To),
	})

	if config.RetentionDays > 0 {
		cronner := cron.New()
		_, err = cronner.AddFunc("@daily", func() {
			cutoff := time.Now().AddDate(0, 0, -config.RetentionDays)
			err := store.Prune(ctx, config.Service.ServiceID, cutoff)
			if err != nil {
				slog.Error("failed to prune history", "err", err)
			}
		})
		if err != nil {
			serviceutil.Fatal("failed to schedule pruning", err)
		}
		cronner.Start()
		defer cronner.Stop()
	}

	go coordinator.RunDaemon(ctx)

	port := config.Port
	if port == 0 {
		port = 8230
	}
	go serviceutil.StartHttpServer(port, planwatch.NewRouter(coordinator, &store, config.AccessToken))

	<-ctx.Done()
	slog.Info("shutting down...")
}
