package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/syssam/persist"
	"github.com/syssam/persist/client"
	"github.com/syssam/persist/config"
	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/dialect/sql"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
)

func params(args []string) persist.Arguments {
	vs := make([]any, len(args))
	for i, a := range args {
		vs[i] = a
	}
	return persist.Args(vs...)
}

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the database answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(ctx context.Context, c *client.Client) error {
				start := time.Now()
				if err := c.Ping(ctx); err != nil {
					return err
				}
				okColor.Fprintf(cmd.OutOrStdout(), "ok: driver=%s dialect=%s (%s)\n",
					a.cfg.Database.Driver, c.Dialect(), time.Since(start).Round(time.Microsecond))
				return nil
			})
		},
	}
}

func newQueryCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "query SQL [ARG...]",
		Short: "Run a query and print its rows",
		Long: `Run a query and print its rows. Parameters are written as ? in the
statement and passed as the remaining arguments; they are rebound to the
placeholder style of the dialect.`,
		Example: `  persist query "SELECT * FROM USERS WHERE AGE > ?" 30
  persist query --format json "SELECT COUNT(*) AS N FROM ORDERS"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := renderer(format); err != nil {
				return err
			}
			return a.withClient(cmd.Context(), func(ctx context.Context, c *client.Client) error {
				rows, err := c.Runner().Simple().ReadLazy(ctx, args[0], params(args[1:]))
				if err != nil {
					return err
				}
				defer rows.Close()
				cols, err := rows.Columns()
				if err != nil {
					return err
				}
				var data [][]any
				for rows.Next() {
					vs, err := rows.Values()
					if err != nil {
						return err
					}
					data = append(data, vs)
				}
				if err := rows.Err(); err != nil {
					return err
				}
				render, _ := renderer(format)
				return render(cmd.OutOrStdout(), cols, data)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json|csv)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newExecCmd(a *app) *cobra.Command {
	var tx bool
	cmd := &cobra.Command{
		Use:   "exec SQL [ARG...]",
		Short: "Run a statement returning no rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(ctx context.Context, c *client.Client) error {
				var affected int64
				exec := func(c *client.Client) error {
					res, err := c.Runner().Simple().Exec(ctx, args[0], params(args[1:]))
					if err != nil {
						return err
					}
					if affected, err = res.RowsAffected(); err != nil {
						affected = -1
					}
					return nil
				}
				var err error
				if tx {
					err = c.WithTx(ctx, func(tx *client.Tx) error { return exec(tx.Client) })
				} else {
					err = exec(c)
				}
				if err != nil {
					return err
				}
				if affected < 0 {
					okColor.Fprintln(cmd.OutOrStdout(), "ok")
					return nil
				}
				okColor.Fprintf(cmd.OutOrStdout(), "ok: %d row(s) affected\n", affected)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&tx, "tx", false, "run the statement in a transaction")
	return cmd
}

func newDialectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List the dialects and how they render SQL fragments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			drivers := make(map[string][]string)
			for _, name := range sql.Drivers() {
				if o, ok := sql.Lookup(name); ok {
					drivers[o.Dialect] = append(drivers[o.Dialect], name)
				}
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Dialect", "Placeholder", "Like", "Limit 10 Offset 20", "Returning", "Drivers"})
			for _, v := range dialect.Vendors() {
				like, limit := "-", "-"
				if v.Like != nil {
					like = "x LIKE " + v.Like.Like(dialect.LikeFull)
				}
				if v.LimitOffset != nil {
					limit = v.LimitOffset.LimitOffset(10, 20)
				}
				placeholder := "?"
				if v.Placeholder == dialect.PlaceholderDollar {
					placeholder = "$n"
				}
				returning := "no"
				if v.Returning {
					returning = "yes"
				}
				t.AppendRow(table.Row{v.Name, placeholder, like, limit, returning, strings.Join(drivers[v.Name], ", ")})
			}
			t.Render()
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *a.cfg
			if cfg.Database.Password != "" {
				cfg.Database.Password = "********"
			}
			return config.Write(cmd.OutOrStdout(), &cfg)
		},
	})
	var force bool
	initCmd := &cobra.Command{
		Use:   "init [FILE]",
		Short: "Write the effective configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFiles[0]
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Save(path, a.cfg); err != nil {
				return err
			}
			if a.cfg.Database.Password != "" {
				warnColor.Fprintf(cmd.ErrOrStderr(), "warning: %s holds the database password\n", path)
			}
			okColor.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
