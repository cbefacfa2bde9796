package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwhite7112/woodpantry-reconcile/internal/config"
	"github.com/mwhite7112/woodpantry-reconcile/internal/density"
	"github.com/mwhite7112/woodpantry-reconcile/internal/domain"
	"github.com/mwhite7112/woodpantry-reconcile/internal/ingredient"
	"github.com/mwhite7112/woodpantry-reconcile/internal/matcher"
	"github.com/mwhite7112/woodpantry-reconcile/internal/service"
	"github.com/mwhite7112/woodpantry-reconcile/internal/units"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "reconcile",
		Short:         "Reconcile recipe ingredients against pantry stock",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(convertCmd())
	rootCmd.AddCommand(planCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadReference returns the unit catalog and density table, from the
// configured files when set and the built-in tables otherwise.
func loadReference(cfg *config.Config) (*units.Catalog, *density.Table, error) {
	catalog := units.Default()
	if cfg.Reference.UnitsFile != "" {
		c, err := units.LoadFile(cfg.Reference.UnitsFile)
		if err != nil {
			return nil, nil, err
		}
		catalog = c
	}

	table := density.Default()
	if cfg.Reference.DensityFile != "" {
		t, err := density.LoadFile(cfg.Reference.DensityFile)
		if err != nil {
			return nil, nil, err
		}
		table = t
	}
	return catalog, table, nil
}

// offlineService builds a service with no upstreams. Only operations that
// take the pantry inline are usable.
func offlineService() (*service.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	catalog, table, err := loadReference(cfg)
	if err != nil {
		return nil, err
	}
	return service.New(nil, nil, catalog, density.NewStore(table),
		service.WithMatcher(matcher.New(matcher.WithFuzzyThreshold(cfg.Matching.FuzzyThreshold))),
	), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [line]...",
		Short: "Parse ingredient lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := offlineService()
			if err != nil {
				return err
			}
			return printJSON(svc.ParseLines(args))
		},
	}
}

func convertCmd() *cobra.Command {
	var size string

	cmd := &cobra.Command{
		Use:   "convert <amount> <from> <to> <ingredient>...",
		Short: "Convert a quantity of an ingredient between units",
		Long: "Convert a quantity of an ingredient between units. Use \"each\" for a\n" +
			"bare count on either side.",
		Args: cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("parse amount %q: %w", args[0], err)
			}

			svc, err := offlineService()
			if err != nil {
				return err
			}
			res, err := svc.Convert(amount, args[1], args[2], strings.Join(args[3:], " "), size)
			if err != nil {
				return err
			}

			to, _ := svc.Catalog().Resolve(args[2])
			fmt.Printf("%g %s (%s, confidence %.2f)\n", res.Rounded(), to.Name, res.Tier, res.Confidence)
			return nil
		},
	}

	cmd.Flags().StringVar(&size, "size", "", "size descriptor for counted items (small, medium, large)")
	return cmd
}

func planCmd() *cobra.Command {
	var pantryFile string

	cmd := &cobra.Command{
		Use:   "plan [line]...",
		Short: "Plan ingredient usage against a pantry snapshot file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readPantry(pantryFile)
			if err != nil {
				return err
			}

			svc, err := offlineService()
			if err != nil {
				return err
			}
			plan, err := svc.PlanLines(cmd.Context(), args, items)
			if err != nil {
				return err
			}

			for i, p := range plan.Plans {
				plan.Plans[i] = p.Rounded()
			}
			for i, d := range plan.Deltas {
				d.Consumed = ingredient.Round2(d.Consumed)
				d.Remaining = ingredient.Round2(d.Remaining)
				plan.Deltas[i] = d
			}
			return printJSON(plan)
		},
	}

	cmd.Flags().StringVar(&pantryFile, "pantry", "", "JSON file holding an array of pantry items")
	return cmd
}

// readPantry loads a pantry snapshot. No path, or a file holding null, is an
// empty pantry; a nil snapshot would select the live pantry, which the
// offline service does not have.
func readPantry(path string) ([]domain.PantryItem, error) {
	items := []domain.PantryItem{}
	if path == "" {
		return items, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pantry: %w", err)
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode pantry: %w", err)
	}
	if items == nil {
		items = []domain.PantryItem{}
	}
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("validate pantry item %d: %w", i, err)
		}
	}
	return items, nil
}
