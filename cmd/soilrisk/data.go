package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/source"
)

var outputsLimit int

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.json>",
	Short: "Load projects, zones and datapoints from a JSON fixture",
	Long: `The seed command writes the projects, zones and datapoints of a fixture
file into the field store. Records that already exist are replaced, so a
fixture can be re-seeded after editing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			f, err := source.LoadFixture(args[0])
			if err != nil {
				return err
			}
			counts, err := source.Seed(ctx, a.field, f)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(counts)
			}
			fmt.Printf("seeded %d project(s), %d zone(s), %d datapoint(s)\n", counts.Projects, counts.Zones, counts.Datapoints)
			return nil
		})
	},
}

var standardsCmd = &cobra.Command{
	Use:   "standards",
	Short: "List the rating standards in the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(_ context.Context, a *app) error {
			stds := a.catalog.Standards()
			if jsonOutput {
				return printJSON(stds)
			}
			rows := make([][]string, 0, len(stds))
			for _, std := range stds {
				rows = append(rows, []string{std.ID, std.Name, std.Revision, strconv.Itoa(len(std.Parameters))})
			}
			return printTable([]string{"ID", "Name", "Revision", "Parameters"}, rows)
		})
	},
}

var outputsCmd = &cobra.Command{
	Use:   "outputs",
	Short: "List the most recent outputs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			outs, err := a.store.ListOutputs(ctx, outputsLimit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(outs)
			}
			rows := make([][]string, 0, len(outs))
			for _, o := range outs {
				latest, err := a.store.LatestNumber(ctx, o.ID)
				if err != nil {
					return err
				}
				rows = append(rows, []string{o.ID, o.ProjectID, o.ZoneID, o.StandardID, strconv.Itoa(latest), o.CreatedAt.Format("2006-01-02 15:04:05")})
			}
			return printTable([]string{"Output", "Project", "Zone", "Standard", "Latest", "Created"}, rows)
		})
	},
}

func init() {
	outputsCmd.Flags().IntVarP(&outputsLimit, "limit", "n", 20, "Maximum number of outputs to list")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(standardsCmd)
	rootCmd.AddCommand(outputsCmd)
}

func printTable(headers []string, rows [][]string) error {
	table := tablewriter.NewTable(os.Stdout)
	table.Header(headers)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}
