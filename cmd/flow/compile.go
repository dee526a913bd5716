package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-park/flow/pkg/config"
	"github.com/go-park/flow/pkg/core"
)

type CompileCommand struct {
	tags      string
	outputDir string
}

func NewCompileCmd() *cobra.Command {
	c := &CompileCommand{}
	cmd := &cobra.Command{
		Use:   "compile [packages]",
		Short: "Compile advice tables and emit proxy decorators",
		Long: `Scan the packages (default: reflection.patterns from the settings),
compile the advice of every aspect and write one <type>_proxy.gen.go per
intercepted class plus a flow_proxies.gen.go registry per package.

Examples:
  # Scan the whole module
  flow compile ./...

  # Write all decorators into one package
  flow compile --output-dir internal/proxies ./...`,
		RunE: c.run,
	}
	cmd.Flags().StringVar(&c.tags, "tags", "", "comma-separated list of build tags to apply")
	cmd.Flags().StringVar(&c.outputDir, "output-dir", "", "write all decorators into this directory")
	return cmd
}

func (c *CompileCommand) run(cmd *cobra.Command, args []string) error {
	rt, err := boot(cmd.Context(), cmd, func(s *config.Settings) {
		if len(args) > 0 {
			s.Reflection.Patterns = args
		}
		if c.tags != "" {
			s.Reflection.Tags = strings.Split(c.tags, ",")
		}
		if c.outputDir != "" {
			s.Proxy.OutputDir = c.outputDir
		}
	}, core.WithGenerate(true))
	if err != nil {
		return err
	}
	for _, file := range rt.Generated {
		fmt.Fprintln(cmd.OutOrStdout(), file)
	}
	return nil
}
