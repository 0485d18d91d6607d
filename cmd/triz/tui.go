package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/vincent-yangyijie/triz-agent/internal/config"
	"github.com/vincent-yangyijie/triz-agent/internal/llm"
	"github.com/vincent-yangyijie/triz-agent/internal/logging"
	"github.com/vincent-yangyijie/triz-agent/internal/tui"
)

func newTUICommand() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Launch the interactive terminal UI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Directory saved reports are written to",
				Value:   ".",
			},
		},
		Action: runTUI,
	}
}

func runTUI(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	logger, closeLog, err := logging.NewFile(cfg.Log, filepath.Join(dir, "triz.log"))
	if err != nil {
		return err
	}
	defer closeLog()

	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	resolve := config.NewResolver(cfg)
	app := tui.NewApp(tui.Options{
		Config:   cfg,
		Registry: registry,
		NewEngine: func(provider string) (tui.Engine, error) {
			eng, err := llm.NewEngine(resolve, provider,
				llm.WithSystemRole(cfg.SystemRole),
				llm.WithTemperature(cfg.Temperature),
				llm.WithLogger(logger))
			if err != nil {
				return nil, err
			}
			return eng, nil
		},
		OutputDir: cmd.String("out"),
		Logger:    logger,
	})

	p := tea.NewProgram(
		app,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
