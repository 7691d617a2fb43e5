package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/evaluation"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/report"
)

var (
	evalZone            string
	evalStandards       []string
	evalDatapoints      []string
	evalRecommendations string
	previewOnly         bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a zone and store a new version",
	Long: `The evaluate command rates the selected datapoints of a zone against one
or more standards. Each standard gets its own output; a zone evaluated
again under the same standard appends the next version number.

Without --datapoint every datapoint of the zone is used. With --preview
nothing is stored and the report is printed instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, runEvaluate)
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions <output-id>",
	Short: "List every version of an output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			vs, err := a.engine.ListVersions(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(vs)
			}
			rows := make([][]string, 0, len(vs))
			for _, v := range vs {
				rows = append(rows, versionRow(v))
			}
			return printTable([]string{"Output", "Version", "Total", "Class", "Stress", "By", "Created"}, rows)
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <output-id> [version]",
	Short: "Print one stored version (latest by default)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			number, err := versionArg(args)
			if err != nil {
				return err
			}
			v, err := a.engine.GetVersion(ctx, args[0], number)
			if err != nil {
				return err
			}
			return printJSON(v)
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <output-id> [version]",
	Short: "Render the report of a stored version (latest by default)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			number, err := versionArg(args)
			if err != nil {
				return err
			}
			v, err := a.engine.GetVersion(ctx, args[0], number)
			if err != nil {
				return err
			}
			doc, err := a.engine.RenderReport(ctx, v)
			if err != nil {
				return err
			}
			return printDocument(doc)
		})
	},
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalZone, "zone", "z", "", "Zone to evaluate (required)")
	evaluateCmd.Flags().StringSliceVarP(&evalStandards, "standard", "s", nil, "Standard id; repeat to evaluate under several standards")
	evaluateCmd.Flags().StringSliceVarP(&evalDatapoints, "datapoint", "d", nil, "Datapoint id to include; repeat for more (default all)")
	evaluateCmd.Flags().StringVar(&evalRecommendations, "recommendations", "", "Free-text recommendations stored with the version")
	evaluateCmd.Flags().BoolVar(&previewOnly, "preview", false, "Compute and print a report without storing a version")
	_ = evaluateCmd.MarkFlagRequired("zone")
	_ = evaluateCmd.MarkFlagRequired("standard")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(reportCmd)
}

func runEvaluate(ctx context.Context, a *app) error {
	if previewOnly {
		for _, std := range evalStandards {
			doc, err := a.engine.Preview(ctx, evalZone, std, evalDatapoints)
			if err != nil {
				return fmt.Errorf("%s: %w", std, err)
			}
			if err := printDocument(doc); err != nil {
				return err
			}
		}
		return nil
	}

	results := make([]evaluation.Version, len(evalStandards))
	errs := make([]error, len(evalStandards))
	var wg conc.WaitGroup
	for i, std := range evalStandards {
		wg.Go(func() {
			v, err := a.engine.Evaluate(ctx, evalZone, std, evalDatapoints, evalRecommendations)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", std, err)
				return
			}
			results[i] = v
		})
	}
	wg.Wait()

	var stored []evaluation.Version
	for i, v := range results {
		if errs[i] == nil {
			stored = append(stored, v)
		}
	}
	if jsonOutput {
		if err := printJSON(stored); err != nil {
			return err
		}
	} else if len(stored) > 0 {
		rows := make([][]string, 0, len(stored))
		for _, v := range stored {
			rows = append(rows, versionRow(v))
		}
		if err := printTable([]string{"Output", "Version", "Total", "Class", "Stress", "By", "Created"}, rows); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

func versionArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("version must be a positive number, got %q", args[1])
	}
	return n, nil
}

func versionRow(v evaluation.Version) []string {
	return []string{
		v.OutputID,
		strconv.Itoa(v.Number),
		strconv.Itoa(v.Total),
		v.Classification.Class,
		v.Classification.Stress,
		v.CreatedBy,
		v.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func printDocument(doc report.Document) error {
	if jsonOutput {
		return printJSON(doc)
	}
	return report.WriteText(os.Stdout, doc)
}
