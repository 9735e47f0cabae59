package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/posecam/internal/app"
	"github.com/ayusman/posecam/internal/config"
	"github.com/ayusman/posecam/internal/overlay"
	"github.com/ayusman/posecam/internal/server"
	"github.com/ayusman/posecam/internal/store"
	"github.com/ayusman/posecam/internal/tray"
)

func main() {
	fmt.Println("posecam - live pose overlay")

	cfgPath := os.Getenv("POSECAM_CONFIG")
	if cfgPath == "" {
		cfgPath = filepath.Join(config.Default().DataDir, config.FileName)
	}

	cfg, err := config.LoadOrCreate(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	hub := server.NewOverlayHub()
	tr := tray.New(true)

	a := app.New(cfg, app.Options{
		Store:      st,
		Presenters: []overlay.Presenter{hub, tr},
	})
	tr.SetDebug(a.Debug())
	a.OnDebugChange(tr.SetDebug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		log.Fatalf("Failed to start overlay: %v", err)
	}
	defer a.Stop()

	srv := server.New(server.Config{
		StaticDir:  findWebDir(cfg.DataDir),
		Controller: a,
		Hub:        hub,
		Frames:     a.Canvas(),
	})

	go func() {
		fmt.Printf("Starting server on %s\n", cfg.ListenAddr)
		if err := srv.ListenAndServe(cfg.ListenAddr); err != nil {
			log.Printf("Server failed: %v", err)
			stop()
		}
	}()

	tr.OnFlip(func() {
		if err := a.ToggleFacing(); err != nil {
			log.Printf("Failed to flip camera: %v", err)
		}
	})
	tr.OnDebug(a.Debug, func(on bool) {
		if err := a.SetDebug(on); err != nil {
			log.Printf("Failed to set debug mode: %v", err)
		}
	})
	tr.OnQuit(stop)

	go func() {
		<-ctx.Done()
		tr.Quit()
	}()

	// Blocks until Quit or a signal.
	tr.Run()
}

// findWebDir returns the first existing web directory, or "" if none.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
