// Command apexctl derives, renders and exports charts from YAML chart files.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/export"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/render/static"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
)

var (
	chartPath string
	outPath   string
	logLevel  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "apexctl",
		Short:        "Derive, render and export charts from YAML chart files",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(newBuildCmd(), newRenderCmd(), newExportCmd(), newWatchCmd(), newCodesCmd())
	return root
}

func logger(cmd *cobra.Command) *telemetry.Logger {
	return telemetry.NewLogger(cmd.ErrOrStderr(), telemetry.Options{
		Service: "apexctl",
		Level:   telemetry.ParseLevel(logLevel),
	})
}

func addChartFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&chartPath, "file", "f", "", "Chart file (YAML)")
	_ = cmd.MarkFlagRequired("file")
}

// buildFile loads a chart file and derives its configuration, logging any
// input warnings.
func buildFile(cmd *cobra.Command) (chart.Result, error) {
	attrs, err := loadChartFile(chartPath)
	if err != nil {
		return chart.Result{}, err
	}
	st, err := chart.StateFrom(attrs)
	if err != nil {
		return chart.Result{}, err
	}
	res, err := chart.Build(st)
	log := logger(cmd)
	for _, w := range res.Warnings {
		log.Warn(cmd.Context(), "chart.input_malformed", map[string]any{
			"code":  string(cerr.CodeOf(w)),
			"error": w.Error(),
		})
	}
	return res, err
}

type buildOutput struct {
	Type       string         `json:"type"`
	Options    map[string]any `json:"options"`
	Series     any            `json:"series"`
	Labels     []string       `json:"labels,omitempty"`
	Categories []string       `json:"categories,omitempty"`
}

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Print the derived chart configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := buildFile(cmd)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(buildOutput{
				Type:       res.Descriptor.EngineType,
				Options:    res.Config,
				Series:     res.Series.Render(),
				Labels:     res.Labels,
				Categories: res.Categories,
			})
		},
	}
	addChartFlag(cmd)
	return cmd
}

func newRenderCmd() *cobra.Command {
	var svg bool
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the chart to a PNG or SVG image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := buildFile(cmd)
			if err != nil {
				return err
			}
			f := static.PNG
			if svg {
				f = static.SVG
			}
			return writeOutput(cmd, func(w io.Writer) error {
				return static.Render(w, f, res.Config, res.Series)
			})
		},
	}
	addChartFlag(cmd)
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&svg, "svg", false, "Render SVG instead of PNG")
	return cmd
}

func newExportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the chart series as JSON, CSV or XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			res, err := buildFile(cmd)
			if err != nil {
				return err
			}
			return writeOutput(cmd, func(w io.Writer) error {
				return export.Write(w, f, export.Input{
					Kind:       res.Kind,
					Series:     res.Series,
					Categories: res.Categories,
					Labels:     res.Labels,
				})
			})
		},
	}
	addChartFlag(cmd)
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&format, "format", "json", "Export format: json, csv, xlsx")
	return cmd
}

func newCodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codes",
		Short: "List error codes as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), string(cerr.ExportJSON()))
			return err
		},
	}
}

func writeOutput(cmd *cobra.Command, write func(io.Writer) error) error {
	if outPath == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
