package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/repo"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard statistics for the reference dataset as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.service.DashboardStats(cmd.Context())
			if err != nil {
				return err
			}
			return writeIndented(a.out, stats)
		},
	}
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var delimiter string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Classify and explain every row of a connection log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sep, err := repo.ParseDelimiter(delimiter)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rt, err := a.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.service.AnalyzeLog(cmd.Context(), f, sep)
			if err != nil {
				return err
			}
			if asJSON {
				return writeIndented(a.out, report)
			}
			printReport(a.out, report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", ",", "cell delimiter (character, or tab|comma|semicolon|pipe)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, report models.AnalysisReport) {
	fmt.Fprintf(w, "analysis %s: %d rows, %d abnormal, %d skipped\n",
		report.AnalysisID, report.TotalRows, report.AbnormalRows, report.SkippedRows)
	for _, row := range report.Results {
		switch {
		case row.Err != nil:
			fmt.Fprintf(w, "row %d: skipped: %v\n", row.Row, row.Err)
		case row.Prediction == models.LabelAbnormal:
			fmt.Fprintf(w, "row %d: abnormal\n", row.Row)
			fields := make([]string, 0, len(row.Explanation))
			for field := range row.Explanation {
				fields = append(fields, field)
			}
			sort.Strings(fields)
			for _, field := range fields {
				fmt.Fprintf(w, "  %s: %s\n", field, row.Explanation[field])
			}
		}
	}
	if report.AbnormalRows == 0 && report.SkippedRows == 0 {
		fmt.Fprintln(w, "no abnormal rows")
	}
}
