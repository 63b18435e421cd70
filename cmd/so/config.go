package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"storeops/internal/config"
	"storeops/internal/engine"
	"storeops/internal/migrate"
)

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config lives in the workspace database: the store list walked by the all-stores view, the ordering fallback rules and the event relay sinks. Write a starting storeops.yml with 'so config init' and load it with 'so config import'.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configImportCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default storeops.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show stored config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config, func(w io.Writer) { renderConfig(w, e.Config) })
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	var file string
	var schema *migrate.Status
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stored config, or a file with --file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if file != "" {
				_, err = config.FromFile(file)
			} else {
				err = withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
					st, serr := migrate.Check(ctx, e.DB)
					if serr != nil {
						return serr
					}
					schema = &st
					return e.Config.Validate()
				})
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": errString(err), "schema": schema})
			}
			if err != nil {
				return err
			}
			if schema != nil {
				fmt.Printf("config OK (schema %d/%d)\n", schema.Current, schema.Latest)
				return nil
			}
			fmt.Println("config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "config file to check instead of the stored config")
	return cmd
}

func configImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import storeops.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = config.Path(viper.GetString("workspace"))
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cfg, err := e.ImportConfig(ctx, data, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cfg)
				}
				fmt.Printf("imported %s (%d stores)\n", file, len(cfg.Stores))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "config file (default <workspace>/storeops.yml)")
	return cmd
}

func storeCmd() *cobra.Command {
	st := &cobra.Command{Use: "store", Short: "Inspect stores"}
	st.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stores in planning order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if viper.GetBool("json") {
					return printJSON(e.Config.Stores)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Store"})
				for i, s := range e.Config.Stores {
					tw.AppendRow(table.Row{i + 1, s})
				}
				tw.Render()
				return nil
			})
		},
	})
	return st
}

func renderConfig(w io.Writer, cfg *config.Config) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Setting", "Value"})
	tw.AppendRow(table.Row{"stores", strings.Join(cfg.Stores, ", ")})
	tw.AppendRow(table.Row{"default delivery day", cfg.Policy().DefaultDeliveryDay})
	tw.AppendRow(table.Row{"require schedules", cfg.Ordering.RequireSchedules})
	for i, hook := range cfg.Relay.Webhooks {
		state := "enabled"
		if hook.Enabled != nil && !*hook.Enabled {
			state = "disabled"
		}
		tw.AppendRow(table.Row{fmt.Sprintf("webhook %d", i+1), fmt.Sprintf("%s (%s)", hook.URL, state)})
	}
	if cfg.Relay.NATS.URL != "" {
		tw.AppendRow(table.Row{"nats", fmt.Sprintf("%s subjects %s.*", cfg.Relay.NATS.URL, cfg.Relay.NATS.SubjectPrefix)})
	}
	tw.Render()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
