// Command readaloud serves narrated reading sessions over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/readaloud-go/internal/adapters/audio"
	"github.com/0xcro3dile/readaloud-go/internal/adapters/documents"
	"github.com/0xcro3dile/readaloud-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/readaloud-go/internal/adapters/narration"
	"github.com/0xcro3dile/readaloud-go/internal/adapters/speech"
	"github.com/0xcro3dile/readaloud-go/internal/adapters/storage"
	"github.com/0xcro3dile/readaloud-go/internal/config"
	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
	"github.com/0xcro3dile/readaloud-go/internal/domain/usecases"
	httpserver "github.com/0xcro3dile/readaloud-go/internal/infrastructure/http"
)

// store is what both storage backends provide.
type store interface {
	ports.SessionStore
	ports.NoteStore
	ports.SettingsStore
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	var db store
	if cfg.DataDir == "" {
		log.Println("[INFO] Using in-memory storage")
		db = storage.NewInMemoryStore()
	} else {
		sqlite, err := storage.NewSQLiteStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer sqlite.Close()
		saved, err := sqlite.SessionCount(ctx)
		if err != nil {
			return fmt.Errorf("reading storage: %w", err)
		}
		log.Printf("[INFO] Using SQLite storage in %s (%d saved session(s))", cfg.DataDir, saved)
		db = sqlite
	}

	docs := documents.NewDirStore(cfg.DocumentsDir, nil)
	if err := docs.Scan(ctx); err != nil {
		return err
	}

	engine := speech.NewCommandEngine(cfg.SpeechCommand, nil)
	if err := engine.Available(); err != nil {
		log.Printf("[WARN] local speech engine %s not found, fallback narration disabled: %v", cfg.SpeechCommand, err)
	}

	settings := usecases.NewSettingsUseCase(db)
	manager := usecases.NewSessionManager(usecases.ManagerDeps{
		Documents:     docs,
		Sessions:      db,
		Settings:      settings,
		Synth:         usecases.NewSynthesisUseCase(provider, cfg.ProviderTimeout),
		Fallback:      usecases.NewFallbackNarrator(engine),
		NewPlayer:     func() ports.AudioPlayer { return audio.NewClockPlayer() },
		SaveInterval:  cfg.SaveInterval,
		FocusDuration: cfg.FocusDuration,
	})
	defer manager.Close()

	watcher, err := filewatcher.NewFSNotifyWatcher(docs.Extensions(), cfg.WatchDebounce)
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Stop()

	server := httpserver.NewServer(manager, docs, usecases.NewNotesUseCase(db), settings, provider.Name(), cfg.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		return docs.Sync(gctx, watcher, manager.Invalidate)
	})

	err = g.Wait()
	log.Println("[INFO] Shutting down")
	return err
}

func newProvider(cfg *config.Config) (ports.NarrationProvider, error) {
	if cfg.APIKey() == "" {
		log.Printf("[WARN] no API key set for the %s provider, narration requests will fail", cfg.Provider)
	}
	switch cfg.Provider {
	case "openai":
		p, err := narration.NewOpenAIProvider(narration.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
		if err != nil {
			return nil, fmt.Errorf("creating openai provider: %w", err)
		}
		return p, nil
	default:
		return narration.NewElevenLabsProvider(cfg.ElevenLabsBaseURL, cfg.ElevenLabsAPIKey, cfg.ElevenLabsModel), nil
	}
}
