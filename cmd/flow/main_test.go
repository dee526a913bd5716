package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "Settings.yaml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	return file
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"compile", "classes", "objects", "cache", "watch"})
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}

func TestCacheFlush(t *testing.T) {
	file := writeSettings(t, "cache:\n  backend: memory\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "all", args: []string{"cache", "flush"}, want: "flushed 3 caches\n"},
		{name: "by tag", args: []string{"cache", "flush", "--tag", "t1"}, want: "flushed 0 entries tagged t1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append(tt.args, "--config", file)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCacheFlush_ExclusiveFlags(t *testing.T) {
	file := writeSettings(t, "cache:\n  backend: memory\n")
	_, err := execute(t, "cache", "flush", "--tag", "a", "--package", "b", "--config", file)
	assert.Error(t, err)
}

func TestMissingSettingsFile(t *testing.T) {
	_, err := execute(t, "objects", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestListings_EmptyIndex(t *testing.T) {
	file := writeSettings(t, "cache:\n  backend: memory\n")

	tests := []struct {
		args   []string
		header string
	}{
		{args: []string{"classes"}, header: "CLASS"},
		{args: []string{"classes", "--proxied"}, header: "CLASS"},
		{args: []string{"objects"}, header: "OBJECT"},
	}
	for _, tt := range tests {
		t.Run(tt.args[len(tt.args)-1], func(t *testing.T) {
			out, err := execute(t, append(tt.args, "--config", file)...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.header)
		})
	}
}
