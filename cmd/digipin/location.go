package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/digipin/internal/app"
	"github.com/fyrsmithlabs/digipin/internal/conversion"
	"github.com/fyrsmithlabs/digipin/internal/location"
)

var (
	// locate command flags
	locateEncode bool
	// open command flags
	openPrintOnly bool
)

func init() {
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(openCmd)

	locateCmd.Flags().BoolVarP(&locateEncode, "encode", "e", false, "Encode the position into a DIGIPIN")
	openCmd.Flags().BoolVar(&openPrintOnly, "print", false, "Print the map URL instead of opening it")
}

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Print the current position",
	Long: `Print the current position from the configured location provider,
rounded to six decimal places.

Examples:
  # Print lat,lng
  digipin locate

  # Encode the current position
  digipin locate --encode`,
	Args: cobra.NoArgs,
	RunE: runLocate,
}

var openCmd = &cobra.Command{
	Use:   "open <lat,lng>",
	Short: "Open a coordinate pair in the map viewer",
	Long: `Open a "lat,lng" pair in the configured map viewer.

A malformed pair is ignored.

Examples:
  digipin open 28.622788,77.213033
  digipin open --print 28.622788,77.213033`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

func runLocate(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app.App) error {
		pos, err := a.Locator.Locate(cmd.Context())
		if err != nil {
			a.Logger.Debug(cmd.Context(), "locate failed", zap.Error(err))
			if hint := location.Remediation(err); hint != "" {
				return fmt.Errorf("%s %s.", location.Message(err), hint)
			}
			return errors.New(location.Message(err))
		}

		if !locateEncode {
			fmt.Fprintln(cmd.OutOrStdout(), conversion.FormatPair(pos.Latitude, pos.Longitude))
			return nil
		}

		code, err := a.Workflow.RunEncode(cmd.Context(),
			strconv.FormatFloat(pos.Latitude, 'f', -1, 64),
			strconv.FormatFloat(pos.Longitude, 'f', -1, 64))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), code)
		return nil
	})
}

func runOpen(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app.App) error {
		if openPrintOnly {
			if url, ok := a.Maps.URL(args[0]); ok {
				fmt.Fprintln(cmd.OutOrStdout(), url)
			}
			return nil
		}
		_, err := a.Maps.Open(cmd.Context(), args[0])
		return err
	})
}
