// Package export renders a pay period's payroll rows as CSV or XLSX.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/workforce"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", generic.NewValidationError("format", fmt.Sprintf("unknown export format %q", s))
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Row is one employee's payroll line with the name resolved.
type Row struct {
	Employee workforce.Employee
	Payroll  workforce.PayrollCalculation
}

var header = []string{
	"user_id", "name", "team", "hourly_rate",
	"regular_hours", "regular_pay", "overtime_hours", "overtime_pay",
	"holiday_hours", "holiday_pay", "pto_hours", "pto_pay", "uto_hours",
	"total_gross_pay",
}

func (r Row) figures() []decimal.Decimal {
	p := r.Payroll
	return []decimal.Decimal{
		p.HourlyRate,
		p.RegularHours, p.RegularPay, p.OvertimeHours, p.OvertimePay,
		p.HolidayHours, p.HolidayPay, p.PTOHours, p.PTOPay, p.UTOHours,
		p.TotalGrossPay,
	}
}

// Load joins the period's payroll rows with employee records. Rows of
// deleted employees keep an empty name.
func Load(ctx context.Context, r workforce.Reader, payPeriodID string) (workforce.PayPeriod, []Row, error) {
	period, err := r.GetPayPeriod(ctx, payPeriodID)
	if err != nil {
		return workforce.PayPeriod{}, nil, err
	}
	calcs, err := r.ListPayroll(ctx, payPeriodID)
	if err != nil {
		return workforce.PayPeriod{}, nil, err
	}
	rows := make([]Row, 0, len(calcs))
	for _, c := range calcs {
		emp, err := r.GetEmployee(ctx, c.UserID)
		if err != nil && !generic.IsNotFound(err) {
			return workforce.PayPeriod{}, nil, err
		}
		if emp.ID == "" {
			emp.ID = c.UserID
		}
		rows = append(rows, Row{Employee: emp, Payroll: c})
	}
	return period, rows, nil
}

// Write renders rows in format f.
func Write(w io.Writer, f Format, period workforce.PayPeriod, rows []Row) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, period, rows)
	default:
		return WriteCSV(w, rows)
	}
}

// Filename suggests a download name for the period.
func Filename(period workforce.PayPeriod, f Format) string {
	return fmt.Sprintf("payroll_%s_%s.%s",
		period.StartDate.Format(generic.DateLayout), period.EndDate.Format(generic.DateLayout), f)
}

// =============================================================================
// CSV
// =============================================================================

func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{r.Employee.ID, r.Employee.FullName(), r.Employee.Team}
		for _, d := range r.figures() {
			rec = append(rec, d.StringFixed(generic.Places))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// =============================================================================
// XLSX
// =============================================================================

const sheetName = "Payroll"

func WriteXLSX(w io.Writer, period workforce.PayPeriod, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if err := f.SetCellValue(sheetName, "A1", "Pay period "+period.Range().String()); err != nil {
		return err
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A2", &headerRow); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A2", last+"2", bold); err != nil {
		return err
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return err
	}
	for i, r := range rows {
		line := i + 3
		values := []any{r.Employee.ID, r.Employee.FullName(), r.Employee.Team}
		for _, d := range r.figures() {
			values = append(values, d.InexactFloat64())
		}
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, fmt.Sprintf("D%d", line), fmt.Sprintf("%s%d", last, line), money); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetName, "A", "C", 20); err != nil {
		return err
	}
	return f.Write(w)
}
