package rpc

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"

	"github.com/ytpoint/point-monitor/pkg/logger"
)

// Spawn starts the worker subprocess described by cfg and returns a
// connected Transport speaking newline-JSON over its standard streams.
//
// The worker's stderr is relayed to the log. When the worker exits for
// any reason the transport shuts down: outstanding calls fail with
// ErrTransportClosed and the event channel is closed.
func Spawn(cfg Config, log logger.Logger) (Transport, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("%w: worker command is empty", ErrInvalidConfig)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...) // #nosec G204: command comes from trusted config

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker %s: %w", cfg.Command, err)
	}

	log.Info("worker process started", "command", cfg.Command, "pid", cmd.Process.Pid)

	stop := func() {
		if killErr := cmd.Process.Kill(); killErr != nil {
			log.Debug("failed to kill worker process", "error", killErr)
		}
	}

	t := newTransport(cfg, stdin, stdout, stop, log)

	go relayStderr(stderr, log)

	// The worker exiting, cleanly or not, closes the transport.
	go func() {
		waitErr := cmd.Wait()
		if waitErr != nil {
			log.Warn("worker process exited", "error", waitErr)
		} else {
			log.Info("worker process exited")
		}
		t.shutdown()
	}()

	return t, nil
}

// relayStderr forwards worker diagnostics to the log, one line each.
func relayStderr(stderr io.Reader, log logger.Logger) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 4*1024), maxLineLength)

	for scanner.Scan() {
		log.Info("worker stderr", "line", scanner.Text())
	}
}
