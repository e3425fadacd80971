package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/timeclock-engine/export"
	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// PAY PERIODS
// =============================================================================

var (
	periodsYear   int
	periodsType   string
	periodsAnchor string
)

var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "Manage pay periods",
}

var periodsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pay periods",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		periods, err := a.services.Payroll.Periods(cmd.Context())
		if err != nil {
			return err
		}
		printPeriods(cmd.OutOrStdout(), periods)
		return nil
	},
}

var periodsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create a year's pay periods, skipping existing ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var anchor time.Time
		if periodsAnchor != "" {
			d, err := generic.ParseDate(periodsAnchor)
			if err != nil {
				return fmt.Errorf("--anchor must be YYYY-MM-DD: %w", err)
			}
			anchor = d
		}

		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		year := periodsYear
		if year == 0 {
			year = time.Now().In(a.cfg.Location).Year()
		}
		created, err := a.services.Payroll.GeneratePeriods(cmd.Context(), year, generic.PeriodType(periodsType), anchor)
		if err != nil {
			return err
		}
		printPeriods(cmd.OutOrStdout(), created)
		return nil
	},
}

var periodsCloseCmd = &cobra.Command{
	Use:   "close <period-id>",
	Short: "Close a pay period so payroll can be computed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.services.Payroll.ClosePeriod(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printPeriods(cmd.OutOrStdout(), []workforce.PayPeriod{p})
		return nil
	},
}

func printPeriods(w io.Writer, periods []workforce.PayPeriod) {
	for _, p := range periods {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.PeriodType, p.Range(), p.Status)
	}
}

// =============================================================================
// PAYROLL
// =============================================================================

var (
	exportFormat string
	exportOutput string
)

var payrollCmd = &cobra.Command{
	Use:   "payroll",
	Short: "Compute and export payroll",
}

var payrollComputeCmd = &cobra.Command{
	Use:   "compute <period-id> [employee-id]",
	Short: "Compute payroll for a closed period",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		var rows []workforce.PayrollCalculation
		if len(args) == 2 {
			c, err := a.services.Payroll.Compute(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			rows = append(rows, c)
		} else {
			// Partial results are printed before the joined error is returned.
			rows, err = a.services.Payroll.ComputeAll(cmd.Context(), args[0])
		}
		out := cmd.OutOrStdout()
		for _, c := range rows {
			fmt.Fprintf(out, "%s\tregular=%s\tovertime=%s\tholiday=%s\tgross=%s\n",
				c.UserID, c.RegularHours.StringFixed(2), c.OvertimeHours.StringFixed(2),
				c.HolidayHours.StringFixed(2), c.TotalGrossPay.StringFixed(2))
		}
		return err
	},
}

var payrollExportCmd = &cobra.Command{
	Use:   "export <period-id>",
	Short: "Write a period's payroll as CSV or XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		period, rows, err := export.Load(cmd.Context(), a.store, args[0])
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := export.Write(&buf, format, period, rows); err != nil {
			return err
		}

		if exportOutput == "" || exportOutput == "-" {
			_, err = cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		if err := os.WriteFile(exportOutput, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportOutput, err)
		}
		a.logger.Info("payroll exported", "period_id", period.ID, "rows", len(rows), "file", exportOutput)
		return nil
	},
}

func init() {
	periodsGenerateCmd.Flags().IntVar(&periodsYear, "year", 0, "calendar year (default: current year)")
	periodsGenerateCmd.Flags().StringVar(&periodsType, "type", string(generic.PeriodMonthly), "weekly, biweekly, semimonthly or monthly")
	periodsGenerateCmd.Flags().StringVar(&periodsAnchor, "anchor", "", "first period start for weekly/biweekly (YYYY-MM-DD)")
	periodsCmd.AddCommand(periodsListCmd, periodsGenerateCmd, periodsCloseCmd)

	payrollExportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or xlsx")
	payrollExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	payrollCmd.AddCommand(payrollComputeCmd, payrollExportCmd)
}
