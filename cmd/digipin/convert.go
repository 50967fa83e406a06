package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/digipin/internal/app"
	"github.com/fyrsmithlabs/digipin/internal/clipboard"
	"github.com/fyrsmithlabs/digipin/internal/conversion"
	"github.com/fyrsmithlabs/digipin/internal/trigger"
)

func init() {
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(selectCmd)
}

var encodeCmd = &cobra.Command{
	Use:   "encode <lat> <lng>",
	Short: "Encode a coordinate pair into a DIGIPIN",
	Long: `Encode a latitude/longitude pair into a DIGIPIN code.

The code is printed, copied to the clipboard and recorded in history.

Examples:
  digipin encode 28.6139 77.2090
  digipin encode -- -0.5 77.2`,
	Args: cobra.ExactArgs(2),
	RunE: runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <code>",
	Short: "Decode a DIGIPIN into coordinates",
	Long: `Decode a DIGIPIN code into the latitude/longitude of its cell center.

Hyphens and case are ignored.

Examples:
  digipin decode 39J-438-TJC7
  digipin decode 39j438tjc7`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

var selectCmd = &cobra.Command{
	Use:   "select [text]",
	Short: "Convert the first coordinate pair found in text",
	Long: `Find the first "lat,lng" pair in the given text (or stdin) and encode it,
the way the context menu does for a text selection.

Examples:
  digipin select "meet at 28.6139, 77.2090"
  xclip -o | digipin select`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSelect,
}

func runEncode(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app.App) error {
		code, err := a.Workflow.RunEncode(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), code)
		return nil
	})
}

func runDecode(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app.App) error {
		coords, err := a.Workflow.RunDecode(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), conversion.FormatPair(coords.Latitude, coords.Longitude))
		return nil
	})
}

func runSelect(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
		text = string(data)
	} else {
		text = args[0]
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("no text to convert")
	}

	// The code is written to stdout as the page's copy.
	page := clipboard.NewWriter(cmd.OutOrStdout())

	return withApp(cmd, func(a *app.App) error {
		res, err := a.Trigger.Handle(cmd.Context(), text)
		if err != nil {
			return err
		}
		switch res.Outcome {
		case trigger.OutcomeHint:
			return errors.New(trigger.HintMessage)
		case trigger.OutcomeFailed:
			return fmt.Errorf("%s %w", trigger.FailureMessage, res.Err)
		}
		return nil
	}, app.WithPageClipboard(page))
}
