package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/Versifine/motor/internal/agent"
	"github.com/Versifine/motor/internal/bridge"
	"github.com/Versifine/motor/internal/config"
	"github.com/Versifine/motor/internal/debug"
	"github.com/Versifine/motor/internal/event"
	"github.com/Versifine/motor/internal/journal"
	"github.com/Versifine/motor/internal/logger"
	"github.com/Versifine/motor/internal/physics"
	"github.com/Versifine/motor/internal/world"
)

const busPoolSize = 64

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("Failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		slog.Warn("Config not found, using defaults", "path", *configPath)
		cfg = config.Default()
	}

	out, closeLog, err := logger.OpenOutput(cfg.Logging.File)
	if err != nil {
		slog.Error("Failed to open log file", "path", cfg.Logging.File, "error", err)
		os.Exit(1)
	}
	defer closeLog()
	logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: out,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Motor exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	bus, err := event.NewBus(busPoolSize)
	if err != nil {
		return err
	}
	defer bus.Close()

	if cfg.Journal.Enabled {
		rec := journal.NewRecorder(journal.NewWriter(cfg.Journal.Dir, "motor"), uuid.NewString())
		rec.Attach(bus, event.All)
		defer func() {
			bus.Drain()
			if err := rec.Close(); err != nil {
				slog.Warn("Journal close failed", "error", err)
			}
		}()
		slog.Info("Journal enabled", "dir", cfg.Journal.Dir)
	}

	server := bridge.NewServer(cfg, bus)
	source := debug.AgentSource(server.Latest)

	var wg sync.WaitGroup
	if cfg.Debug.Simulate {
		local := startSimulation(ctx, cfg, bus, &wg)
		defer local.Close()
		source = func() *agent.Agent {
			if a := server.Latest(); a != nil {
				return a
			}
			return local
		}
	}

	if cfg.Debug.Console {
		console := debug.NewConsole(source, os.Stdout)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := console.Start(ctx); err != nil {
				slog.Warn("Debug console stopped", "error", err)
			}
		}()
	}

	err = server.ListenAndServe(ctx)
	wg.Wait()
	return err
}

// startSimulation runs a local agent on the built-in ground plane so the
// controllers can be exercised without a host engine.
func startSimulation(ctx context.Context, cfg *config.Config, bus *event.Bus, wg *sync.WaitGroup) *agent.Agent {
	ws := world.NewWorldState()
	ws.SpawnPlayer("local-player", world.Transform{})
	local := agent.New(ctx, ws, bus, cfg)

	sim := physics.NewSimulator(ws, local.Device(), cfg.Debug.FrameInterval, physics.Tuning{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = sim.Run(ctx)
	}()
	slog.Info("Local simulation started", "agent", local.ID())
	return local
}
