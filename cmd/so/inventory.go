package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"storeops/internal/domain"
	"storeops/internal/engine"
	"storeops/internal/repo"
)

func ingredientCmd() *cobra.Command {
	ing := &cobra.Command{
		Use:     "ingredient",
		Aliases: []string{"ing"},
		Short:   "Manage the inventory snapshot",
	}
	ing.AddCommand(ingredientListCmd())
	ing.AddCommand(ingredientGetCmd())
	ing.AddCommand(ingredientSetCmd())
	ing.AddCommand(ingredientStockCmd())
	ing.AddCommand(ingredientDeleteCmd())
	ing.AddCommand(ingredientImportCmd())
	return ing
}

func ingredientListCmd() *cobra.Command {
	var f repo.IngredientFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ingredients in snapshot order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListIngredients(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(w io.Writer) { renderIngredients(w, items) })
			})
		},
	}
	cmd.Flags().StringVar(&f.Supplier, "supplier", "", "supplier filter")
	cmd.Flags().StringVar(&f.Category, "category", "", "category filter")
	cmd.Flags().BoolVar(&f.BelowMin, "below-min", false, "only ingredients under their minimum level")
	return cmd
}

func ingredientGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show one ingredient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				ing, err := r.GetIngredient(ctx, args[0])
				if err != nil {
					return fmt.Errorf("ingredient %q: %w", args[0], err)
				}
				return printJSONOrTable(ing, func(w io.Writer) { renderIngredients(w, []domain.Ingredient{ing}) })
			})
		},
	}
}

func ingredientSetCmd() *cobra.Command {
	var in domain.Ingredient
	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Create or replace an ingredient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ing, err := e.UpsertIngredient(ctx, in, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(ing, func(w io.Writer) { renderIngredients(w, []domain.Ingredient{ing}) })
			})
		},
	}
	cmd.Flags().Float64Var(&in.CurrentStock, "stock", 0, "current stock")
	cmd.Flags().Float64Var(&in.MinStockLevel, "min", 0, "minimum stock level")
	cmd.Flags().StringVar(&in.Category, "category", "", "category")
	cmd.Flags().StringVar(&in.SupplierName, "supplier", "", "supplier name")
	cmd.Flags().IntVar(&in.LeadTimeDays, "lead-time", 0, "supplier lead time in days")
	cmd.Flags().StringVar(&in.Unit, "unit", "", "unit of measure")
	_ = cmd.MarkFlagRequired("supplier")
	_ = cmd.MarkFlagRequired("unit")
	return cmd
}

func ingredientStockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stock NAME QUANTITY",
		Short: "Record a stock count",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ing, err := e.SetStock(ctx, args[0], qty, actorID())
				if err != nil {
					return fmt.Errorf("ingredient %q: %w", args[0], err)
				}
				if viper.GetBool("json") {
					return printJSON(ing)
				}
				fmt.Printf("%s: %s %s (min %s)\n", ing.Name, formatQty(ing.CurrentStock), ing.Unit, formatQty(ing.MinStockLevel))
				return nil
			})
		},
	}
}

func ingredientDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove an ingredient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteIngredient(ctx, args[0], actorID()); err != nil {
					return fmt.Errorf("ingredient %q: %w", args[0], err)
				}
				fmt.Printf("deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func ingredientImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the snapshot from a YAML or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ImportIngredients(ctx, data, engine.FormatForPath(file), actorID())
				if err != nil {
					return err
				}
				fmt.Printf("imported %d ingredients from %s\n", len(items), file)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot file (.yml, .yaml or .json)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func scheduleCmd() *cobra.Command {
	sch := &cobra.Command{Use: "schedule", Short: "Manage supplier delivery schedules"}
	sch.AddCommand(scheduleListCmd())
	sch.AddCommand(scheduleSetCmd())
	sch.AddCommand(scheduleDeleteCmd())
	sch.AddCommand(scheduleImportCmd())
	return sch
}

func scheduleListCmd() *cobra.Command {
	var store string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List delivery schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListSchedules(ctx, store)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(w io.Writer) { renderSchedules(w, items) })
			})
		},
	}
	cmd.Flags().StringVar(&store, "store", "", "store filter")
	return cmd
}

func scheduleSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set SUPPLIER STORE DAY...",
		Short:   "Set the weekdays a supplier delivers to a store",
		Example: `  so schedule set "Dairy Direct" "London Bridge" mon thu`,
		Args:    cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.PutSchedule(ctx, domain.DeliverySchedule{
					SupplierName: args[0],
					StoreName:    args[1],
					DeliveryDays: splitDays(args[2:]),
				}, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(s, func(w io.Writer) { renderSchedules(w, []domain.DeliverySchedule{s}) })
			})
		},
	}
}

func scheduleDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete SUPPLIER STORE",
		Short: "Remove a delivery schedule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteSchedule(ctx, args[0], args[1], actorID()); err != nil {
					return fmt.Errorf("schedule %s@%s: %w", args[0], args[1], err)
				}
				fmt.Printf("deleted schedule %s@%s\n", args[0], args[1])
				return nil
			})
		},
	}
}

func scheduleImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace all schedules from a YAML or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ImportSchedules(ctx, data, engine.FormatForPath(file), actorID())
				if err != nil {
					return err
				}
				fmt.Printf("imported %d schedules from %s\n", len(items), file)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "schedule file (.yml, .yaml or .json)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// splitDays accepts both "mon thu" and "mon,thu".
func splitDays(args []string) []string {
	var days []string
	for _, a := range args {
		for _, d := range strings.Split(a, ",") {
			if d = strings.TrimSpace(d); d != "" {
				days = append(days, d)
			}
		}
	}
	return days
}
