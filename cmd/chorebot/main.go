package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/lileeluna/chores-bot/internal/backup"
	"github.com/lileeluna/chores-bot/internal/command"
	"github.com/lileeluna/chores-bot/internal/database"
	"github.com/lileeluna/chores-bot/internal/gateway"
	"github.com/lileeluna/chores-bot/internal/logging"
	"github.com/lileeluna/chores-bot/internal/rotation"
	"github.com/lileeluna/chores-bot/internal/schedule"
	"github.com/lileeluna/chores-bot/internal/store"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	envFile := pflag.String("env-file", ".env", "path to an optional .env file")
	dbFlag := pflag.String("db", "", "database path (overrides CHOREBOT_DB_PATH)")
	logFlag := pflag.String("log-level", "", "log level (overrides CHOREBOT_LOG_LEVEL)")
	pflag.Parse()

	// Missing .env files are fine, real config may live in the environment.
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load env file: %v", err)
	}

	logLevel := envOr("CHOREBOT_LOG_LEVEL", "info")
	if *logFlag != "" {
		logLevel = *logFlag
	}
	logger := logging.Setup(logLevel)

	token := os.Getenv("CHOREBOT_TOKEN")
	if token == "" {
		log.Fatal("CHOREBOT_TOKEN is required")
	}
	gatewayURL := os.Getenv("CHOREBOT_GATEWAY_URL")
	if gatewayURL == "" {
		log.Fatal("CHOREBOT_GATEWAY_URL is required")
	}

	dbPath := envOr("CHOREBOT_DB_PATH", "chorebot.db")
	if *dbFlag != "" {
		dbPath = *dbFlag
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	roster := store.NewRosterStore(db)
	chores := store.NewChoreStore(db)
	smileys := store.NewSmileyStore(db)
	notifs := store.NewNotificationStore(db)

	engine := rotation.NewEngine(db, chores, smileys, logger)
	monthly := schedule.ParseMonthlyPolicy(os.Getenv("CHOREBOT_MONTHLY_POLICY"))

	client := gateway.NewClient(gateway.Config{
		URL:   gatewayURL,
		Token: token,
	}, logger)

	router := command.NewRouter(client, roster, chores, smileys, engine, monthly, logger)
	client.SetHandler(router.Handle)

	sweepChannel := envOr("CHOREBOT_CHANNEL", "bot-test")
	scheduler := schedule.NewScheduler(chores, notifs, client, sweepChannel, logger)

	backupHour, _ := strconv.Atoi(envOr("CHOREBOT_BACKUP_HOUR", "3"))
	retentionDays, _ := strconv.Atoi(envOr("CHOREBOT_BACKUP_RETENTION_DAYS", "30"))
	backups := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("CHOREBOT_S3_ENDPOINT"),
			Bucket:    os.Getenv("CHOREBOT_S3_BUCKET"),
			Region:    envOr("CHOREBOT_S3_REGION", "auto"),
			AccessKey: os.Getenv("CHOREBOT_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("CHOREBOT_S3_SECRET_KEY"),
		},
		Passphrase:    os.Getenv("CHOREBOT_BACKUP_PASSPHRASE"),
		Hour:          backupHour,
		RetentionDays: retentionDays,
	}, db, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client.Start(ctx)
	scheduler.Start(ctx)
	backups.Start(ctx)

	// Drop stale rate limiter windows so the map does not grow forever.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				router.Limiter().Cleanup()
			}
		}
	}()

	logger.Info("chorebot running",
		"db", dbPath,
		"channel", sweepChannel,
		"monthly_policy", string(monthly),
		"backups", backups.Enabled())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	backups.Stop()
	scheduler.Stop()
	client.Stop()
}
