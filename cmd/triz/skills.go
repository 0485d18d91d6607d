package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func newSkillsCommand() *cli.Command {
	return &cli.Command{
		Name:  "skills",
		Usage: "List the analysis skills in run order",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			registry, err := loadRegistry(cfg)
			if err != nil {
				return err
			}

			w := stdout(cmd)
			for _, s := range registry.All() {
				fmt.Fprintf(w, "%2d. %s\n", s.ID, s.Name)
				if s.Description != "" {
					fmt.Fprintf(w, "    %s\n", s.Description)
				}
			}
			return nil
		},
	}
}
