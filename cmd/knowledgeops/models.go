package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newModelsCmd(env func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models served by the language-model backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := newApp(ctx, env())
			if err != nil {
				return err
			}
			defer a.Close()

			models, err := a.chat.ListModels(ctx)
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, m := range models {
				marker := " "
				if m == a.chat.DefaultModel() {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, m)
			}
			return nil
		},
	}
}
