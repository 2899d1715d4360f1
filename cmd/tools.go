package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"squish/internal/strategy"
	"squish/internal/tool"
	"squish/internal/tui"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show which external optimizers are installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		probe := tool.NewProbe(logger)
		var rows []tui.SummaryRow
		for _, id := range strategy.Tools() {
			res := probe.Lookup(id)
			value := "not found"
			if res.OK {
				value = "installed"
				if res.Version != "" {
					value = res.Version
				}
			}
			rows = append(rows, tui.SummaryRow{Label: id, Value: value})
		}
		fmt.Fprintln(os.Stdout, tui.RenderSummary(rows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
