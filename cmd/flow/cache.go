package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-park/flow/pkg/cache"
)

type CacheFlushCommand struct {
	tag     string
	pkgPath string
}

func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the framework caches",
	}
	cmd.AddCommand(newCacheFlushCmd())
	return cmd
}

func newCacheFlushCmd() *cobra.Command {
	c := &CacheFlushCommand{}
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Flush the reflection, proxy and monitor caches",
		Long: `Flush every framework cache, or only the entries carrying a tag.

Examples:
  # Forget everything
  flow cache flush

  # Forget what was cached about one package
  flow cache flush --package github.com/acme/shop`,
		RunE: c.run,
	}
	cmd.Flags().StringVar(&c.tag, "tag", "", "flush only entries with this tag")
	cmd.Flags().StringVar(&c.pkgPath, "package", "", "flush only entries of this package")
	cmd.MarkFlagsMutuallyExclusive("tag", "package")
	return cmd
}

func (c *CacheFlushCommand) run(cmd *cobra.Command, _ []string) error {
	s, _, log, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	m := cache.NewManager(s.Cache, log)
	for _, id := range cache.FrameworkCaches {
		if _, err := m.Backend(id); err != nil {
			return err
		}
	}
	tag := c.tag
	if c.pkgPath != "" {
		tag = cache.Encode(c.pkgPath)
	}
	if tag == "" {
		if err := m.FlushCaches(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "flushed %d caches\n", len(m.Identifiers()))
		return nil
	}
	n, err := m.FlushCachesByTag(tag)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "flushed %d entries tagged %s\n", n, tag)
	return nil
}
