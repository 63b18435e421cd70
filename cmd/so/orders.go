package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"storeops/internal/domain"
	"storeops/internal/engine"
	"storeops/internal/planner"
	"storeops/internal/repo"
)

func ordersCmd() *cobra.Command {
	ord := &cobra.Command{Use: "orders", Short: "Suggested supplier orders"}
	ord.AddCommand(ordersSuggestCmd())
	return ord
}

func ordersSuggestCmd() *cobra.Command {
	var store, today string
	var all bool
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Compute ranked supplier orders for a store or every store",
		RunE: func(cmd *cobra.Command, args []string) error {
			var day time.Time
			if today != "" {
				parsed, err := planner.ParseDate(today)
				if err != nil {
					return err
				}
				day = parsed
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if all {
					store = domain.AllStores
				}
				scope := domain.ParseScope(store, e.Config.Stores)
				s, err := e.SuggestOrders(ctx, scope, day, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(s, func(w io.Writer) { renderSuggestion(w, s) })
			})
		},
	}
	cmd.Flags().StringVar(&store, "store", "", "store name")
	cmd.Flags().BoolVar(&all, "all", false, "every configured store (the default when --store is not given)")
	cmd.MarkFlagsMutuallyExclusive("store", "all")
	cmd.Flags().StringVar(&today, "today", "", "planning date YYYY-MM-DD (default: today)")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor"})
				for _, evt := range events {
					entity := evt.EntityKind
					if evt.EntityID != "" {
						entity += " " + evt.EntityID
					}
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, entity, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func renderSuggestion(w io.Writer, s engine.Suggestion) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(fmt.Sprintf("Suggested orders for %s on %s", s.Scope, s.Today))
	tw.AppendHeader(table.Row{"Urgency", "Order by", "Delivery", "Supplier", "Store", "Ingredient", "Stock", "Min", "Order"})
	for _, o := range s.Orders {
		for i, line := range o.Items {
			row := table.Row{"", "", "", "", ""}
			if i == 0 {
				row = table.Row{strings.ToUpper(string(o.Urgency)), o.OrderDate, o.ExpectedDeliveryDate, o.SupplierName, o.StoreName}
			}
			row = append(row, line.IngredientName, formatQty(line.CurrentStock), formatQty(line.MinStockLevel), formatQty(line.OrderQuantity)+" "+line.Unit)
			tw.AppendRow(row)
		}
		tw.AppendSeparator()
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})
	tw.AppendFooter(table.Row{"", "", "", "", "", "", "", "Orders", len(s.Orders)})
	tw.Render()
	if len(s.Orders) == 0 {
		fmt.Fprintln(w, "Nothing to order: every ingredient is at or above its minimum level.")
	}
	for _, k := range s.Fallbacks {
		fmt.Fprintf(w, "note: no delivery schedule for %s at %s; default delivery day used\n", k.Supplier, k.Store)
	}
}

func renderIngredients(w io.Writer, items []domain.Ingredient) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Name", "Category", "Supplier", "Stock", "Min", "Unit", "Lead time"})
	for _, ing := range items {
		tw.AppendRow(table.Row{ing.Name, ing.Category, ing.SupplierName, formatQty(ing.CurrentStock), formatQty(ing.MinStockLevel), ing.Unit, fmt.Sprintf("%dd", ing.LeadTimeDays)})
	}
	tw.Render()
}

func renderSchedules(w io.Writer, items []domain.DeliverySchedule) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Supplier", "Store", "Delivery days"})
	for _, s := range items {
		tw.AppendRow(table.Row{s.SupplierName, s.StoreName, strings.Join(s.DeliveryDays, ", ")})
	}
	tw.Render()
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
