package main

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/digipin/internal/app"
	"github.com/fyrsmithlabs/digipin/internal/logging"
	"github.com/fyrsmithlabs/digipin/internal/panel"
)

func init() {
	rootCmd.AddCommand(panelCmd)
}

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Open the interactive conversion panel",
	Long: `Open the interactive panel with encode and decode forms, the current
location button and the recent history list.

Keys:
  tab / shift+tab   move between fields and the history list
  enter             encode, decode, or copy the selected item
  ctrl+l            fill latitude/longitude from the current location
  ctrl+o            open the last decoded point in the map viewer
  [ / ]             change how many conversions are kept
  ctrl+x            clear history
  esc               quit`,
	Args: cobra.NoArgs,
	RunE: runPanel,
}

func runPanel(cmd *cobra.Command, args []string) error {
	// Console logs would draw over the panel.
	quiet := app.WithLogWriter(io.Discard)

	return withApp(cmd, func(a *app.App) error {
		ctx := logging.WithSource(cmd.Context(), logging.SourcePanel)

		model, err := panel.New(ctx, panel.Deps{
			Converter: a.Workflow,
			History:   a.History,
			Locator:   a.Locator,
			Clipboard: a.Clipboard,
			Maps:      a.Maps,
			Logger:    a.Logger.Named("panel"),
		})
		if err != nil {
			return err
		}

		p := tea.NewProgram(model,
			tea.WithContext(ctx),
			tea.WithInput(cmd.InOrStdin()),
			tea.WithOutput(cmd.OutOrStdout()),
			tea.WithAltScreen(),
		)
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("panel: %w", err)
		}
		return nil
	}, quiet)
}
