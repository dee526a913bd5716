package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/go-park/flow/pkg/config"
	"github.com/go-park/flow/pkg/core"
	"github.com/go-park/flow/pkg/logging"
)

// loadSettings reads the settings named by --config and applies --verbose.
func loadSettings(cmd *cobra.Command) (*config.Settings, *config.Tree, logrus.FieldLogger, error) {
	file, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	s, tree, err := config.Load(file)
	if err != nil {
		return nil, nil, nil, err
	}
	if verbose {
		s.Log.Level = logrus.DebugLevel.String()
	}
	log, err := logging.NewWithOutput(s.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}
	return s, tree, log, nil
}

// boot loads the settings, lets adjust change them and boots the framework.
func boot(ctx context.Context, cmd *cobra.Command, adjust func(*config.Settings), opts ...core.Option) (*core.Runtime, error) {
	s, tree, log, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(s)
	}
	opts = append([]core.Option{core.WithSettings(s, tree), core.WithLogger(log)}, opts...)
	return core.Boot(ctx, opts...)
}
