package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/knowledgeops/internal/config"
	"github.com/kailas-cloud/knowledgeops/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var env string

	root := &cobra.Command{
		Use:           "knowledgeops",
		Short:         "Department knowledge base with confidence-gated answers",
		Version:       fmt.Sprintf("%s (%s, %s)", version.Version, version.Commit, version.Date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&env, "env", config.GetEnv(), "config environment (local, dev, prod)")

	envFn := func() string { return env }
	root.AddCommand(
		newServeCmd(envFn),
		newSetupCmd(envFn),
		newIngestCmd(envFn),
		newModelsCmd(envFn),
	)
	return root
}
