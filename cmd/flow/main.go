package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flow",
		Short: "Weave aspects into Go types and manage their objects",
		Long: `flow scans Go packages for //@Aspect, //@Around, //@Scope and related
annotations, compiles advice tables for every intercepted class, emits Go
decorator sources and builds the configured object graph.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "settings file (default ./Settings.yaml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(NewCompileCmd())
	root.AddCommand(NewClassesCmd())
	root.AddCommand(NewObjectsCmd())
	root.AddCommand(NewCacheCmd())
	root.AddCommand(NewWatchCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
