package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"storeops/internal/app"
	"storeops/internal/db"
	"storeops/internal/engine"
	"storeops/internal/migrate"
	"storeops/internal/relay"
	"storeops/internal/repo"
	"storeops/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "so",
	Short: "storeops CLI",
	Long: `storeops suggests supplier orders for a group of stores.
- Workspace: the .storeops directory holding the database; config is stored there and imported from storeops.yml explicitly.
- Ingredients: the inventory snapshot, one record per ingredient with its supplier and lead time.
- Schedules: the weekdays each supplier delivers to each store. Pairs without one fall back to the configured default day.
- Orders: 'so orders suggest' groups short items by supplier, dates each order from the next delivery and ranks by urgency.
- Event log: every change and every suggestion run, view with 'so log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("STOREOPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log planner warnings to stderr")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(storeCmd())
	rootCmd.AddCommand(ingredientCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(ordersCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server and event relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := viper.GetString("addr")
			basePath := viper.GetString("base-path")
			logger := log.New(os.Stderr, "storeops ", log.LstdFlags)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				e.Planner.Logger = logger
				rl, err := relay.New(e.Repo, e.Config.Relay, logger)
				if err != nil {
					return err
				}
				defer rl.Close()
				if err := rl.Start(ctx); err != nil {
					return err
				}
				go rl.Run(ctx)

				handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				logger.Printf("serving storeops API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at %s/docs, %d relay sinks)",
					addr, basePath, basePath, basePath, rl.Len())
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().String("base-path", "/v0", "API base path")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("base-path", cmd.Flags().Lookup("base-path"))
	return cmd
}

// --- helpers ---

func cliLogger() *log.Logger {
	if viper.GetBool("verbose") {
		return log.New(os.Stderr, "", 0)
	}
	return log.New(io.Discard, "", 0)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	cfg, err := app.ResolveConfig(ctx, r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	e.Planner.Logger = cliLogger()
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func actorID() string {
	return viper.GetString("actor-id")
}

// printJSONOrTable writes v as JSON under --json and through render otherwise.
func printJSONOrTable(v any, render func(io.Writer)) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	render(os.Stdout)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
