package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/vincent-yangyijie/triz-agent/internal/config"
	"github.com/vincent-yangyijie/triz-agent/internal/logging"
	"github.com/vincent-yangyijie/triz-agent/internal/skill"
)

func newRootCommand() *cli.Command {
	defaultPath, _ := config.ConfigPath()

	return &cli.Command{
		Name:    "triz",
		Usage:   "Ten-step TRIZ analysis of engineering problems with DeepSeek or Kimi",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   defaultPath,
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "LLM provider (deepseek or kimi)",
			},
			&cli.StringFlag{
				Name:  "skills-dir",
				Usage: "Directory of SKILL.md files overriding the built-in skills",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			newServeCommand(),
			newTUICommand(),
			newRunCommand(),
			newSkillsCommand(),
		},
	}
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if !cmd.IsSet("config") && !config.Exists() {
		slog.Debug("no config file, using defaults")
	}
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cmd.IsSet("provider") {
		cfg.Provider = cmd.String("provider")
	}
	if cmd.IsSet("skills-dir") {
		cfg.SkillsDir = cmd.String("skills-dir")
	}
	if cmd.Bool("debug") {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func loadRegistry(cfg *config.Config) (*skill.Registry, error) {
	r, err := skill.LoadWithOverrides(cfg.SkillsDir)
	if err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}
	return r, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := logging.New(cfg.Log, w)
	slog.SetDefault(logger)
	return logger
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func stderr(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}
