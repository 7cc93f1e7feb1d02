// Package app wires the tracker, its storage and its summarizer from config.
package app

import (
	"fmt"
	"log"
	"os"

	"sheettrack/internal/config"
	"sheettrack/internal/llm"
	"sheettrack/internal/sheet"
	"sheettrack/internal/storage"
	"sheettrack/internal/tracker"
)

type App struct {
	Config    *config.Config
	KV        storage.KV
	Store     *storage.RecordStore
	Journal   storage.Journal
	Tracker   *tracker.Tracker
	Generator *sheet.Generator
}

// Build opens storage, restores the session and builds the tracker.
// Observers are notified of every finished run.
func Build(cfg *config.Config, observers ...tracker.Observer) (*App, error) {
	kv, err := OpenKV(cfg)
	if err != nil {
		return nil, err
	}

	var journal storage.Journal
	if cfg.RunsFilePath != "" {
		j, err := storage.NewFileJournal(cfg.RunsFilePath)
		if err != nil {
			log.Printf("failed to init run journal: %v", err)
		} else {
			journal = j
		}
	}

	var summarizer tracker.Summarizer
	client, err := llm.NewFactory(cfg).CreateClient(cfg.LLMProvider)
	if err != nil {
		// refreshes still complete and report the error insight
		log.Printf("❌ failed to create llm client: %v", err)
	} else {
		summarizer = llm.NewInsights(client, readSystemPrompt(cfg.SystemPromptPath))
	}

	store := storage.NewRecordStore(kv)
	initial := store.Load()
	log.Printf("📂 Restored %d rows, processed index %d (%s store)", len(initial.Log), initial.Watermark, cfg.StoreBackend)

	tr := tracker.New(initial, tracker.Options{
		Summarizer:     summarizer,
		Persister:      store,
		Journal:        journal,
		Observers:      observers,
		SummaryTimeout: cfg.SummaryTimeout,
	})

	return &App{
		Config:    cfg,
		KV:        kv,
		Store:     store,
		Journal:   journal,
		Tracker:   tr,
		Generator: sheet.NewGenerator(),
	}, nil
}

// OpenKV opens the configured key-value backend.
func OpenKV(cfg *config.Config) (storage.KV, error) {
	switch cfg.StoreBackend {
	case config.StoreFile, "":
		kv, err := storage.NewFileKV(cfg.StoreFilePath)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return kv, nil
	case config.StoreSQLite:
		kv, err := storage.NewSQLiteKV(cfg.StoreSQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return kv, nil
	case config.StoreMemory:
		return storage.NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}

func (a *App) Close() error {
	return a.KV.Close()
}

func readSystemPrompt(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("system prompt file not found or unreadable at %s: %v", path, err)
		return ""
	}
	return string(data)
}
