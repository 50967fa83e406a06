package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/digipin/internal/app"
	"github.com/fyrsmithlabs/digipin/internal/history"
)

var (
	// history command flags
	exportFormat string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyLimitCmd)
	historyCmd.AddCommand(historyExportCmd)

	historyExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json, yaml, or toml")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent conversions",
	Long: `Show recent conversions, most recent first.

Examples:
  # List history
  digipin history

  # Keep only the last 10 conversions
  digipin history limit 10

  # Export as YAML
  digipin history export --format yaml`,
	Args: cobra.NoArgs,
	RunE: runHistoryList,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded conversions",
	Long:  `Delete all recorded conversions. The retention limit is kept.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

var historyLimitCmd = &cobra.Command{
	Use:   "limit [n]",
	Short: "Show or set how many conversions are kept",
	Long: `Show or set how many conversions are kept.

Lowering the limit drops the oldest entries immediately. Raising it never
brings dropped entries back. The panel offers 5, 10, 20 and 50.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistoryLimit,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export history as JSON, YAML or TOML",
	Args:  cobra.NoArgs,
	RunE:  runHistoryExport,
}

// historyDocument is the exported form of the history.
type historyDocument struct {
	Limit int            `json:"limit" yaml:"limit" toml:"limit"`
	Items []history.Item `json:"items" yaml:"items" toml:"items"`
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app.App) error {
		items, limit, err := a.History.Load(cmd.Context())
		if err != nil {
			return err
		}
		writeHistory(cmd.OutOrStdout(), items, limit)
		return nil
	})
}

func writeHistory(out io.Writer, items []history.Item, limit int) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No recent items")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tINPUT\tOUTPUT\tTIME")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Kind, it.Input, it.Output, it.Time().Format(time.DateTime))
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\nShowing %d of last %d\n", len(items), limit)
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app.App) error {
		if err := a.History.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
		return nil
	})
}

func runHistoryLimit(cmd *cobra.Command, args []string) error {
	var n int
	if len(args) == 1 {
		var err error
		n, err = strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("limit must be a positive integer, got %q", args[0])
		}
	}

	return withApp(cmd, func(a *app.App) error {
		if n == 0 {
			_, limit, err := a.History.Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), limit)
			return nil
		}

		items, limit, err := a.History.SetLimit(cmd.Context(), n)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Keeping last %d (%d stored)\n", limit, len(items))
		return nil
	})
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	switch exportFormat {
	case "json", "yaml", "toml":
	default:
		return fmt.Errorf("unsupported format %q (want json, yaml, or toml)", exportFormat)
	}

	return withApp(cmd, func(a *app.App) error {
		items, limit, err := a.History.Load(cmd.Context())
		if err != nil {
			return err
		}
		return exportHistory(cmd.OutOrStdout(), exportFormat, historyDocument{Limit: limit, Items: items})
	})
}

func exportHistory(w io.Writer, format string, doc historyDocument) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case "toml":
		if err := toml.NewEncoder(w).Encode(doc); err != nil {
			return fmt.Errorf("failed to encode toml: %w", err)
		}
		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
}
