package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fractalscan/adapters/excel"
	"fractalscan/app"
	"fractalscan/domain/chat"
	"fractalscan/domain/core"
	"fractalscan/internal"
	scanning "fractalscan/internal/fractal"
	"fractalscan/internal/report"
	"fractalscan/internal/testkit"

	"github.com/spf13/cobra"
)

func newService(concurrency int) *app.ScanService {
	scanner := scanning.NewScanner()
	logger := internal.NewConsoleLogger(internal.ParseLogLevel(os.Getenv("LOG_LEVEL")), os.Stderr)
	return app.NewScanService(scanner, scanning.NewBatchScanner(scanner, concurrency), nil, logger)
}

// loadRequests reads each file into a scan request named after the file
func loadRequests(paths []string, mode chat.BranchingMode) ([]app.ScanRequest, error) {
	reqs := make([]app.ScanRequest, 0, len(paths))
	for _, path := range paths {
		msgs, err := excel.NewDataReader(path).ReadMessages()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		reqs = append(reqs, app.ScanRequest{ConversationID: core.ConversationID(name), Messages: msgs, Mode: mode})
	}
	return reqs, nil
}

func newScanCmd() *cobra.Command {
	var format, modeName, xlsxPath string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "scan FILE...",
		Short: "Scan one or more log files (.json, .csv, .xlsx)",
		Long: `Scan chat log files and print chaos scores, alignment and influence.

Several files are scanned concurrently. Example:
  fractalscan scan team-a.json team-b.csv --format table --concurrency 4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := ParseOutputFormat(format)
			if err != nil {
				return err
			}
			mode, err := chat.ParseBranchingMode(modeName)
			if err != nil {
				return err
			}
			if xlsxPath != "" && len(args) != 1 {
				return fmt.Errorf("--xlsx needs exactly one input file, got %d", len(args))
			}

			reqs, err := loadRequests(args, mode)
			if err != nil {
				return err
			}

			results := newService(concurrency).ScanBatch(cmd.Context(), reqs)
			if err := WriteResults(cmd.OutOrStdout(), results, outFormat); err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			if xlsxPath != "" && results[0].Record != nil {
				if err := excel.ExportScan(xlsxPath, results[0].Record); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", xlsxPath)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scans failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json, yaml or markdown")
	cmd.Flags().StringVarP(&modeName, "mode", "m", "auto", "branching mode: auto, replies or parent")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also export the scan to this .xlsx file")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", scanning.DefaultBatchConcurrency, "files scanned at once")
	return cmd
}

func newReportCmd() *cobra.Command {
	var format, modeName, output string

	cmd := &cobra.Command{
		Use:   "report FILE",
		Short: "Render a Markdown or HTML report for one log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportFormat, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			mode, err := chat.ParseBranchingMode(modeName)
			if err != nil {
				return err
			}

			reqs, err := loadRequests(args, mode)
			if err != nil {
				return err
			}
			rec, err := newService(1).Scan(cmd.Context(), reqs[0])
			if err != nil {
				return err
			}
			out, err := report.Render(rec, reportFormat)
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return os.WriteFile(output, out, 0o644)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "md", "report format: md or html")
	cmd.Flags().StringVarP(&modeName, "mode", "m", "auto", "branching mode: auto, replies or parent")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")
	return cmd
}

func newDemoCmd() *cobra.Command {
	var format string
	var messages int
	var seed int64

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Scan the built-in sample conversations and a generated one",
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := ParseOutputFormat(format)
			if err != nil {
				return err
			}
			return runDemo(cmd.Context(), cmd.OutOrStdout(), outFormat, messages, seed)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json, yaml or markdown")
	cmd.Flags().IntVar(&messages, "messages", 200, "size of the generated conversation")
	cmd.Flags().Int64Var(&seed, "seed", 42, "seed for the generated conversation")
	return cmd
}

func runDemo(ctx context.Context, w io.Writer, format OutputFormat, messages int, seed int64) error {
	var reqs []app.ScanRequest
	for _, fx := range testkit.Fixtures() {
		reqs = append(reqs, app.ScanRequest{ConversationID: core.ConversationID(fx.Name), Messages: fx.Messages, Mode: fx.Mode})
	}

	genCfg := testkit.DefaultConversationConfig()
	genCfg.Messages = messages
	genCfg.Seed = seed
	generated, err := testkit.NewConversationGenerator(genCfg).Generate()
	if err != nil {
		return err
	}
	reqs = append(reqs, app.ScanRequest{
		ConversationID: core.ConversationID(fmt.Sprintf("generated-%d", seed)),
		Messages:       generated,
		Mode:           genCfg.Mode,
	})

	return WriteResults(w, newService(scanning.DefaultBatchConcurrency).ScanBatch(ctx, reqs), format)
}
