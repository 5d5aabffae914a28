// Package cmd builds the command line: config loading, logger lifecycle and a signal-aware context.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/m3rciful/memearena/core/buildinfo"
	coreconfig "github.com/m3rciful/memearena/core/config"
	"github.com/m3rciful/memearena/core/logger"
)

// Action runs with a loaded config until ctx is cancelled.
type Action func(ctx context.Context, cfg *coreconfig.Config) error

// Options describe how to load configuration and which actions the subcommands run.
type Options struct {
	Use   string
	Short string

	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig     func(path string) (*coreconfig.Config, error)
	InitLogger     func(cfg *coreconfig.Config) error
	ShutdownLogger func() error

	Serve   Action
	Migrate Action

	// HashPassword backs the hash-password subcommand, which needs no config.
	HashPassword func(password string) (string, error)
}

func (o *Options) defaults() {
	if o.ConfigEnvVar == "" {
		o.ConfigEnvVar = "CONFIG_PATH"
	}
	if o.DefaultConfigPath == "" {
		o.DefaultConfigPath = "config.yaml"
	}
	if o.LoadConfig == nil {
		o.LoadConfig = coreconfig.Load
	}
	if o.InitLogger == nil {
		o.InitLogger = logger.InitLogger
	}
	if o.ShutdownLogger == nil {
		o.ShutdownLogger = logger.Shutdown
	}
}

// NewRootCommand returns the root command. Without a subcommand it serves.
func NewRootCommand(opts Options) *cobra.Command {
	opts.defaults()
	var configPath string

	root := &cobra.Command{
		Use:          opts.Use,
		Short:        opts.Short,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("config file (default $%s or %s)", opts.ConfigEnvVar, opts.DefaultConfigPath))

	resolve := func() string {
		if configPath != "" {
			return configPath
		}
		if p := os.Getenv(opts.ConfigEnvVar); p != "" {
			return p
		}
		return opts.DefaultConfigPath
	}
	runner := func(name string, action Action) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			if action == nil {
				return fmt.Errorf("cmd: %s is not available", name)
			}
			return run(cmd.Context(), opts, resolve(), name, action)
		}
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		Args:  cobra.NoArgs,
		RunE:  runner("serve", opts.Serve),
	}
	root.RunE = serve.RunE

	root.AddCommand(
		serve,
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			Args:  cobra.NoArgs,
			RunE:  runner("migrate", opts.Migrate),
		},
		&cobra.Command{
			Use:   "hash-password [password]",
			Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH (reads stdin without an argument)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if opts.HashPassword == nil {
					return errors.New("cmd: hash-password is not available")
				}
				password, err := passwordArg(cmd, args)
				if err != nil {
					return err
				}
				hash, err := opts.HashPassword(password)
				if err != nil {
					return fmt.Errorf("cmd: hash password: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
				return err
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), buildinfo.Summary())
				return err
			},
		},
	)
	return root
}

// passwordArg takes the password from args or the first line of stdin.
func passwordArg(cmd *cobra.Command, args []string) (string, error) {
	password := ""
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", errors.New("cmd: no password given")
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return "", errors.New("cmd: empty password")
	}
	return password, nil
}

func run(parent context.Context, opts Options, path, name string, action Action) error {
	if parent == nil {
		parent = context.Background()
	}
	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if err := opts.InitLogger(cfg); err != nil {
		return fmt.Errorf("cmd: logger init failed: %w", err)
	}
	defer func() {
		if err := opts.ShutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info(ctx, logger.CompApp, "start",
		slog.String("command", name),
		slog.String("version", buildinfo.Summary()),
		slog.String("config", path),
	)
	err = action(ctx, cfg)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		logger.Error(ctx, logger.CompApp, "exit", slog.String("command", name), logger.Err(err))
	}
	return err
}
