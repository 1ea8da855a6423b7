package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/negmarket/internal/filter"
	"github.com/celerix-dev/negmarket/pkg/schema"
)

func searchCmd() *cobra.Command {
	var (
		category string
		stage    string
		maxPrice int64
		sortBy   string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Filter the catalog by text, category, stage and price",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, ok := filter.ParseSortKey(sortBy)
			if !ok {
				return fmt.Errorf("unknown sort %q", sortBy)
			}

			q := schema.NewQuery(cfg.Market.DefaultPriceCeiling)
			if len(args) == 1 {
				q.Text = args[0]
			}
			if category != "" {
				q.Category = schema.Category(category)
			}
			if stage != "" {
				q.Stage = schema.FailureStage(stage)
			}
			if cmd.Flags().Changed("max-price") {
				q.PriceCeiling = maxPrice
			}

			hits, err := mkt.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			hits = filter.Sort(hits, key)
			if asJSON {
				printJSON(hits)
				return nil
			}
			printListings(hits)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category (see facets), All for any")
	cmd.Flags().StringVar(&stage, "stage", "", "failure stage, All for any")
	cmd.Flags().Int64Var(&maxPrice, "max-price", 0, "price ceiling in credits (default: market.default_price_ceiling)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "price_asc, price_desc, downloads or confidence")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <listing>",
		Short: "Show one listing with its preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := mkt.Listing(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJSON(l)
			return nil
		},
	}
}

func featuredCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "featured",
		Short: "List the featured datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hits, err := mkt.Featured(cmd.Context())
			if err != nil {
				return err
			}
			printListings(hits)
			return nil
		},
	}
}

func printListings(listings []schema.Listing) {
	if len(listings) == 0 {
		fmt.Fprintln(out, "No datasets match these filters.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tSTAGE\tPRICE\tDOWNLOADS\tTAGS")
	for _, l := range listings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			l.ID, l.Title, l.Category, l.FailureStage, l.Price, l.Downloads, strings.Join(l.Tags, ","))
	}
	tw.Flush()
}
