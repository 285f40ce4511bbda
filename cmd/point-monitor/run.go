package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ytpoint/point-monitor/pkg/config"
	"github.com/ytpoint/point-monitor/pkg/logger"
	"github.com/ytpoint/point-monitor/pkg/monitor"
	"github.com/ytpoint/point-monitor/pkg/points"
	"github.com/ytpoint/point-monitor/pkg/rpc"
	"github.com/ytpoint/point-monitor/pkg/store"
	"github.com/ytpoint/point-monitor/pkg/viewer"
)

// errQuit signals a clean console exit.
var errQuit = errors.New("quit")

// monitorCommand wires the engine together and runs the interactive
// console until quit or signal.
type monitorCommand struct {
	configPath string
}

// runMonitorCommand runs the run command.
func runMonitorCommand(configPath string) error {
	cmd := &monitorCommand{
		configPath: configPath,
	}
	return cmd.Execute()
}

// Execute runs the monitoring engine.
func (m *monitorCommand) Execute() error {
	// First run with no config anywhere: materialize the defaults at
	// the standard location so users have a file to edit.
	if m.configPath == "" {
		if _, err := os.Stat(config.DefaultPath()); os.IsNotExist(err) {
			if saveErr := config.Save(config.Default(), config.DefaultPath()); saveErr == nil {
				fmt.Printf("Wrote default configuration to %s\n", config.DefaultPath())
			}
		}
	}

	cfg, err := config.NewLoader(m.configPath).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Output: cfg.Logging.Output,
		Format: cfg.Logging.Format,
	})

	st := store.New(cfg.Points, log)

	workerCfg := rpc.Config{
		Command:     cfg.Worker.Command,
		Args:        cfg.Worker.Args,
		CallTimeout: cfg.Worker.CallTimeout,
	}
	ctrl, err := monitor.New(monitor.Config{
		PollInterval:     cfg.Polling.Interval,
		FallbackCurrency: cfg.Currency.Fallback,
		Cookies:          cfg.Worker.Cookies,
		NewTransport: func() (rpc.Transport, error) {
			return rpc.Spawn(workerCfg, log)
		},
	}, st, log)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv viewer.Server
	if cfg.Server.Enabled {
		srv, err = viewer.New(viewer.Config{
			Host:    cfg.Server.Host,
			PortMin: cfg.Server.PortMin,
			PortMax: cfg.Server.PortMax,
		}, st, log)
		if err != nil {
			return fmt.Errorf("failed to create viewer server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start viewer server: %w", err)
		}
		defer srv.Close()
		fmt.Printf("Viewer overlay: %s\n", srv.URL())
	}

	watcher := m.startConfigWatcher(ctx, log)
	if watcher != nil {
		defer watcher.Close()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.console(ctx, ctrl, srv)
	})

	g.Go(func() error {
		if watcher == nil {
			<-ctx.Done()
			return nil
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case reloaded, ok := <-watcher.Updates():
				if !ok {
					return nil
				}
				// Rates are the only setting safe to swap at runtime;
				// the controller defers them while a session is active.
				ctrl.ApplyRates(reloaded.Points)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// startConfigWatcher begins hot-reloading the effective config file,
// when one exists. Reload failures never stop the engine.
func (m *monitorCommand) startConfigWatcher(ctx context.Context, log logger.Logger) config.Watcher {
	path := m.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	w, err := config.NewWatcher(path, log)
	if err != nil {
		log.Warn("config hot-reload unavailable", "error", err)
		return nil
	}
	if err := w.Start(ctx); err != nil {
		log.Warn("config hot-reload unavailable", "error", err)
		_ = w.Close()
		return nil
	}
	return w
}

// console reads commands from stdin until quit, EOF, or ctx cancel.
func (m *monitorCommand) console(ctx context.Context, ctrl monitor.Controller, srv viewer.Server) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Println("point-monitor console, type 'help' for commands")
	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil

		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			if err := m.dispatch(ctx, ctrl, srv, line); err != nil {
				if errors.Is(err, errQuit) {
					return errQuit
				}
				fmt.Printf("error: %v\n", err)
			}
		}
	}
}

// dispatch executes one console command.
func (m *monitorCommand) dispatch(ctx context.Context, ctrl monitor.Controller, srv viewer.Server, line string) error {
	name, arg := parseConsoleLine(line)

	switch name {
	case "":
		return nil

	case "start":
		if err := ctrl.Start(ctx, arg); err != nil {
			return err
		}
		status := ctrl.Status()
		fmt.Printf("Monitoring %s (%s)\n", status.VideoID, status.ChannelName)
		return nil

	case "stop":
		return ctrl.Stop(ctx)

	case "add", "visitor":
		delta, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("usage: %s <integer>", name)
		}
		if name == "add" {
			ctrl.AddManualPoints(delta)
		} else {
			ctrl.AddVisitorPoints(delta)
		}
		fmt.Println(formatPoints(ctrl.Points()))
		return nil

	case "reset":
		ctrl.Reset()
		fmt.Println(formatPoints(ctrl.Points()))
		return nil

	case "points":
		fmt.Println(formatPoints(ctrl.Points()))
		return nil

	case "status":
		status := ctrl.Status()
		fmt.Printf("state: %s\n", status.State)
		if status.VideoID != "" {
			fmt.Printf("video: %s\nchannel: %s\nauthenticated: %v\n",
				status.VideoID, status.ChannelName, status.Authenticated)
		}
		if srv != nil {
			fmt.Printf("viewer: %s (%d connected)\n", srv.URL(), srv.ClientCount())
		}
		return nil

	case "help":
		fmt.Println("commands: start <url|id>, stop, add <n>, visitor <n>, reset, points, status, quit")
		return nil

	case "quit", "exit":
		return errQuit

	default:
		return fmt.Errorf("unknown command: %s", name)
	}
}

// parseConsoleLine splits a console line into a command name and its
// argument tail.
func parseConsoleLine(line string) (name, arg string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

// formatPoints renders a point breakdown for the console.
func formatPoints(ps points.PointState) string {
	return fmt.Sprintf("total: %d (superchat: %d, concurrent: %d, likes: %d, subscribers: %d, manual: %d, visitor: %d)",
		ps.Total, ps.Superchat, ps.Concurrent, ps.Likes, ps.Subscribers, ps.Manual, ps.Visitor)
}
