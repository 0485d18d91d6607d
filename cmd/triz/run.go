package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/vincent-yangyijie/triz-agent/internal/config"
	"github.com/vincent-yangyijie/triz-agent/internal/document"
	"github.com/vincent-yangyijie/triz-agent/internal/llm"
	"github.com/vincent-yangyijie/triz-agent/internal/pipeline"
	"github.com/vincent-yangyijie/triz-agent/internal/report"
	"github.com/vincent-yangyijie/triz-agent/internal/skill"
)

func newRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run the analysis headless and write the report",
		ArgsUsage: "[problem text]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Read the problem from a pdf, docx, txt or md file",
			},
			&cli.StringFlag{
				Name:    "text",
				Aliases: []string{"t"},
				Usage:   "Problem text",
			},
			&cli.IntFlag{
				Name:    "skill",
				Aliases: []string{"s"},
				Usage:   "Run only this skill id (default: all skills)",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Write the result to this file instead of stdout",
			},
		},
		Action: runRun,
	}
}

func runRun(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, stderr(cmd))

	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	input, err := readInput(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	if strings.TrimSpace(input) == "" {
		return pipeline.ErrEmptyInput
	}

	engine, err := llm.NewEngine(config.NewResolver(cfg), cfg.Provider,
		llm.WithSystemRole(cfg.SystemRole),
		llm.WithTemperature(cfg.Temperature),
		llm.WithLogger(logger))
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr(cmd), "Using %s (%s)\n", engine.Provider(), engine.Model())

	out, err := analyze(ctx, job{
		generator: engine,
		registry:  registry,
		input:     input,
		skillID:   cmd.Int("skill"),
		limit:     cfg.Report.InputLimit,
		progress:  stderr(cmd),
		logger:    logger,
	})
	if err != nil {
		return err
	}

	path := cmd.String("out")
	if path == "" {
		_, err := io.WriteString(stdout(cmd), out)
		return err
	}
	saved, err := report.Save(filepath.Dir(path), filepath.Base(path), out)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr(cmd), "Saved %s\n", saved)
	return nil
}

// readInput takes --text, then --file, then the positional arguments.
func readInput(ctx context.Context, cmd *cli.Command, cfg *config.Config) (string, error) {
	if text := cmd.String("text"); text != "" {
		return text, nil
	}
	if path := cmd.String("file"); path != "" {
		doc, err := document.NewConverter(cfg.Upload.MaxBytes).Convert(ctx, path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		fmt.Fprintf(stderr(cmd), "File '%s' loaded successfully! (%s)\n", doc.Metadata.Title, doc.Metadata.Summary())
		return doc.Content, nil
	}
	return strings.Join(cmd.Args().Slice(), " "), nil
}

type job struct {
	generator pipeline.Generator
	registry  *skill.Registry
	input     string
	// skillID selects one skill; zero runs them all.
	skillID  int
	limit    int
	progress io.Writer
	logger   *slog.Logger
}

// analyze runs the job and returns the markdown to write: the full report, or
// a single skill's output when skillID is set.
func analyze(ctx context.Context, j job) (string, error) {
	ctrl := pipeline.NewController(j.registry, j.generator, pipeline.WithLogger(j.logger))
	sess := pipeline.NewSession("cli", "")

	if j.skillID != 0 {
		sk, ok := j.registry.Get(j.skillID)
		if !ok {
			return "", fmt.Errorf("%w: %d", pipeline.ErrUnknownSkill, j.skillID)
		}
		fmt.Fprintf(j.progress, "Analyzing Skill %d: %s...\n", sk.ID, sk.ShortName())
		if err := ctrl.RunSingle(ctx, sess, j.skillID, j.input); err != nil {
			return "", err
		}
		text, _ := sess.Result(j.skillID)
		return text, nil
	}

	err := ctrl.RunAll(ctx, sess, j.input, func(p pipeline.Progress) {
		fmt.Fprintf(j.progress, "[%d/%d] %s\n", p.Completed, p.Total, p.Message)
	})
	if err != nil {
		return "", err
	}
	return report.Build(j.registry, sess.Results(), j.input, j.limit), nil
}
