package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ytpoint/point-monitor/pkg/config"
)

// configCommand handles configuration management subcommands.
type configCommand struct {
	configPath string
}

// runConfigCommand runs the config command.
func runConfigCommand(configPath string, args []string) error {
	cmd := &configCommand{
		configPath: configPath,
	}
	return cmd.Execute(args)
}

// Execute runs the config command with given arguments.
func (c *configCommand) Execute(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "show":
		return c.runShow()
	case "path":
		return c.runPath()
	case "init":
		return c.runInit()
	case "help":
		return c.showHelp()
	default:
		return fmt.Errorf("unknown config subcommand: %s", args[0])
	}
}

// runShow displays the effective configuration.
func (c *configCommand) runShow() error {
	cfg, err := config.NewLoader(c.configPath).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println("# Current Configuration")
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

// runPath prints the config file location in use.
func (c *configCommand) runPath() error {
	path := c.configPath
	if path == "" {
		path = config.DefaultPath()
	}

	fmt.Println(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("(file does not exist, defaults in effect)")
	}
	return nil
}

// runInit writes the default configuration to disk.
func (c *configCommand) runInit() error {
	path := c.configPath
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := config.Save(config.Default(), path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Default configuration written to %s\n", path)
	return nil
}

// showHelp displays config command usage.
func (c *configCommand) showHelp() error {
	usage := `Configuration management

Usage:
  point-monitor config <subcommand>

Subcommands:
  show        Display the effective configuration
  path        Print the config file location
  init        Write the default configuration to disk
  help        Show this help message
`
	fmt.Print(usage)
	return nil
}
