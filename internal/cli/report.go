package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/perfcore/internal/profiler/report"
	"github.com/wesleyorama2/perfcore/pkg/jsonpath"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect saved performance reports",
}

var reportValidateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check report files against the report schema",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			doc, err := report.ReadFile(path)
			if err == nil {
				err = report.Validate(doc)
			}
			if err != nil {
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "%s: invalid\n%v\n", path, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d reports failed validation", failed, len(args))
		}
		return nil
	},
}

var reportQueryCmd = &cobra.Command{
	Use:   "query <file> <path>...",
	Short: "Extract values from a report with JSONPath",
	Long: `Print the value each path selects, one per line.

  perfcore report query performance_report_20240101_120000.json '$.methods.*.count'
  perfcore report query report.json.gz '$.memory.heapUsed' '$.cpu.processCpuLoad'`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := report.ReadFile(args[0])
		if err != nil {
			return err
		}
		for _, path := range args[1:] {
			value, err := jsonpath.Extract(doc, path)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
		}
		return nil
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Print a saved report as a console summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := report.ReadFile(args[0])
		if err != nil {
			return err
		}
		var r report.Report
		if err := json.Unmarshal(doc, &r); err != nil {
			return fmt.Errorf("failed to decode report: %w", err)
		}
		top, _ := cmd.Flags().GetInt("top")
		return report.Render(cmd.OutOrStdout(), &r, report.WithColorScheme(colorScheme(cmd)), report.WithTopMethods(top))
	},
}

func init() {
	reportShowCmd.Flags().Int("top", 0, "Show only the N most expensive methods (0 shows all)")

	reportCmd.AddCommand(reportValidateCmd)
	reportCmd.AddCommand(reportQueryCmd)
	reportCmd.AddCommand(reportShowCmd)
}
