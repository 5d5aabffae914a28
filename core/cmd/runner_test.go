package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memearena/core/buildinfo"
	coreconfig "github.com/m3rciful/memearena/core/config"
)

type recorder struct {
	paths   []string
	actions []string
}

func (r *recorder) options() Options {
	action := func(name string) Action {
		return func(context.Context, *coreconfig.Config) error {
			r.actions = append(r.actions, name)
			return nil
		}
	}
	return Options{
		Use: "memearena",
		LoadConfig: func(path string) (*coreconfig.Config, error) {
			r.paths = append(r.paths, path)
			return &coreconfig.Config{}, nil
		},
		InitLogger:     func(*coreconfig.Config) error { return nil },
		ShutdownLogger: func() error { return nil },
		Serve:          action("serve"),
		Migrate:        action("migrate"),
		HashPassword:   func(p string) (string, error) { return "hashed(" + p + ")", nil },
	}
}

func execute(t *testing.T, opts Options, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(opts)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootDefaultsToServe(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	r := &recorder{}

	_, err := execute(t, r.options())

	require.NoError(t, err)
	assert.Equal(t, []string{"serve"}, r.actions)
	assert.Equal(t, []string{"config.yaml"}, r.paths)
}

func TestConfigFlagBeatsEnvironment(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/etc/memearena/env.yaml")
	r := &recorder{}

	_, err := execute(t, r.options(), "migrate", "--config", "/tmp/flag.yaml")
	require.NoError(t, err)
	_, err = execute(t, r.options(), "serve")
	require.NoError(t, err)

	assert.Equal(t, []string{"migrate", "serve"}, r.actions)
	assert.Equal(t, []string{"/tmp/flag.yaml", "/etc/memearena/env.yaml"}, r.paths)
}

func TestLoadFailureStopsBeforeAction(t *testing.T) {
	r := &recorder{}
	opts := r.options()
	opts.LoadConfig = func(string) (*coreconfig.Config, error) { return nil, errors.New("bad yaml") }

	_, err := execute(t, opts)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad yaml")
	assert.Empty(t, r.actions)
}

func TestCancelledActionIsCleanExit(t *testing.T) {
	r := &recorder{}
	opts := r.options()
	opts.Serve = func(context.Context, *coreconfig.Config) error { return context.Canceled }

	_, err := execute(t, opts, "serve")
	assert.NoError(t, err)
}

func TestVersionPrintsBuildInfo(t *testing.T) {
	r := &recorder{}
	out, err := execute(t, r.options(), "version")

	require.NoError(t, err)
	assert.Contains(t, out, buildinfo.Summary())
	assert.Empty(t, r.paths)
}

func TestHashPasswordFromArgument(t *testing.T) {
	r := &recorder{}
	out, err := execute(t, r.options(), "hash-password", "hunter2")

	require.NoError(t, err)
	assert.Equal(t, "hashed(hunter2)\n", out)
	assert.Empty(t, r.paths)
}

func TestHashPasswordFromStdin(t *testing.T) {
	r := &recorder{}
	root := NewRootCommand(r.options())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader("from stdin\r\nignored\n"))
	root.SetArgs([]string{"hash-password"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "hashed(from stdin)\n", out.String())
}

func TestHashPasswordRejectsEmptyInput(t *testing.T) {
	r := &recorder{}
	root := NewRootCommand(r.options())
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(""))
	root.SetArgs([]string{"hash-password"})

	assert.Error(t, root.Execute())
}
