// Package cli implements the persist command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/persist/client"
	"github.com/syssam/persist/config"
)

// Version is set at build time.
var Version = "0.1.0"

// app holds the state shared by the commands of one invocation.
type app struct {
	cfgFile string
	envFile string
	cfg     *config.Config
	log     *slog.Logger
}

// open opens a client on the configured database.
func (a *app) open() (*client.Client, error) {
	c, err := a.cfg.Open(a.log)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", a.cfg.Database.Driver, err)
	}
	return c, nil
}

// withClient runs fn with an open client and closes it afterwards.
func (a *app) withClient(ctx context.Context, fn func(context.Context, *client.Client) error) error {
	c, err := a.open()
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "persist",
		Short: "persist - inspect databases through the persist runtime",
		Long: `persist opens a database with the same drivers, dialects and configuration
as applications built on the persist runtime, and runs statements against it.

Configuration is read from persist.yaml, a .env file, PERSIST_ environment
variables and the flags below, in increasing order of precedence.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Loader{Path: a.cfgFile, EnvFile: a.envFile, Flags: cmd.Root().PersistentFlags()}.Load()
			if err != nil {
				return err
			}
			log, _, err := config.NewLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./persist.yaml)")
	flags.StringVar(&a.envFile, "env-file", "", "dotenv file (default: ./.env)")
	flags.String("driver", "", "registered driver name, e.g. sqlite, postgres, pgx, mysql")
	flags.String("dialect", "", "dialect override for the driver")
	flags.String("dsn", "", "data source name, used as is")
	flags.String("database", "", "database name or file")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	_ = root.RegisterFlagCompletionFunc("log-level", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newPingCmd(a),
		newQueryCmd(a),
		newExecCmd(a),
		newDialectsCmd(),
		newConfigCmd(a),
	)
	return root
}

// Execute runs the root command with os.Args.
func Execute() error {
	return run(NewRootCmd(), os.Stderr)
}

func run(root *cobra.Command, stderr io.Writer) error {
	if err := root.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
