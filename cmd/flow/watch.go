package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/go-park/flow/pkg/core"
	"github.com/go-park/flow/pkg/monitor"
)

type WatchCommand struct {
	compile bool
}

func NewWatchCmd() *cobra.Command {
	c := &WatchCommand{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Flush stale caches when monitored files change",
		RunE:  c.run,
	}
	cmd.Flags().BoolVar(&c.compile, "compile", false, "re-emit proxy decorators after each change")
	return cmd
}

func (c *WatchCommand) run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := boot(ctx, cmd, nil)
	if err != nil {
		return err
	}
	return rt.Watch(ctx, func(changes []monitor.Change) {
		for _, ch := range changes {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ch.Kind, ch.Path)
		}
		if !c.compile {
			return
		}
		if err := c.recompile(ctx, cmd); err != nil {
			rt.Log.WithError(err).Error("recompiling proxies")
		}
	})
}

func (c *WatchCommand) recompile(ctx context.Context, cmd *cobra.Command) error {
	rt, err := boot(ctx, cmd, nil, core.WithGenerate(true))
	if err != nil {
		return err
	}
	for _, file := range rt.Generated {
		fmt.Fprintln(cmd.OutOrStdout(), file)
	}
	return nil
}
