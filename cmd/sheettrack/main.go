package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sheettrack/internal/app"
	"sheettrack/internal/config"
	"sheettrack/internal/scheduler"
	"sheettrack/internal/storage"
	"sheettrack/internal/telegram"
	"sheettrack/internal/web"
)

// forwards runs to the bot, which is created after the tracker
type botObserver struct{ bot *telegram.Bot }

func (o *botObserver) RunFinished(ctx context.Context, run storage.Run) {
	if o.bot != nil {
		o.bot.RunFinished(ctx, run)
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := &botObserver{}
	a, err := app.Build(cfg, notifier)
	if err != nil {
		log.Fatalf("failed to init tracker: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("failed to close store: %v", err)
		}
	}()

	if cfg.TelegramBotToken != "" {
		bot, err := telegram.New(cfg.TelegramBotToken, cfg.TelegramChatID, a.Tracker, a.Generator)
		if err != nil {
			log.Printf("failed to start telegram bot: %v", err)
		} else {
			notifier.bot = bot
			go bot.Start(ctx)
		}
	}

	sched := scheduler.New(cfg.AutoRunSchedule)
	sched.SetRunFunction(func(ctx context.Context) error {
		_, err := a.Tracker.Refresh(ctx)
		return err
	})
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	ws := web.NewWebServer(ctx, a.Tracker, a.Generator, a.Journal, cfg.SpreadsheetID, cfg.HTTPPort)
	go func() {
		<-ctx.Done()
		log.Println("🔌 Shutting down...")
		if err := ws.Stop(); err != nil {
			log.Printf("❌ Server shutdown error: %v", err)
		}
	}()

	if err := ws.Start(); err != nil {
		log.Printf("❌ HTTP server failed: %v", err)
	}
}
