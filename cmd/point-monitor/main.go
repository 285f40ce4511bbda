// Package main provides the point-monitor CLI application.
//
// Point Monitor tracks a live broadcast and converts its signals
// (superchat revenue, concurrent viewers, likes, subscriber growth)
// plus two manual counters into a running points total, served to
// display surfaces over a local websocket endpoint.
package main

import (
	"flag"
	"fmt"
	"os"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run() error {
	// Define global flags.
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version information")

	flag.Parse()

	if *showVersion {
		fmt.Printf("point-monitor %s\n", version)
		return nil
	}

	args := flag.Args()
	command := "run"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "run":
		return runMonitorCommand(*configPath)
	case "config":
		return runConfigCommand(*configPath, args[1:])
	case "help":
		return showUsage()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// showUsage displays usage information.
func showUsage() error {
	usage := `Point Monitor - live broadcast points monitoring

Usage:
  point-monitor [flags] <command> [command flags]

Commands:
  run         Start the monitoring engine with an interactive console (default)
  config      Configuration management (show, path, init)
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Console Commands (inside 'run'):
  start <url|id>   Start monitoring a broadcast
  stop             Stop the current session
  add <n>          Add n manual points (n may be negative)
  visitor <n>      Add n visitor points (n may be negative)
  reset            Zero the manual and visitor counters
  points           Print the current point breakdown
  status           Print controller and viewer status
  quit             Exit

Examples:
  # Run with the default configuration
  point-monitor

  # Run with an explicit configuration file
  point-monitor -config ./config.yaml run

  # Write the default configuration to the standard location
  point-monitor config init
`
	fmt.Print(usage)
	return nil
}
