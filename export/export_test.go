package export_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/timeclock-engine/export"
	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/store/memory"
	"github.com/warp/timeclock-engine/workforce"
	"github.com/warp/timeclock-engine/workforce/workforcetest"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func testPeriod() workforce.PayPeriod {
	return workforce.PayPeriod{
		ID:         "p1",
		StartDate:  workforcetest.Monday,
		EndDate:    workforcetest.Monday.AddDate(0, 0, 6),
		PeriodType: generic.PeriodWeekly,
		Status:     workforce.PeriodClosed,
	}
}

func testRow() export.Row {
	return export.Row{
		Employee: workforcetest.Employee("u1"),
		Payroll: workforce.PayrollCalculation{
			PayPeriodID:   "p1",
			UserID:        "u1",
			HourlyRate:    d("20"),
			RegularHours:  d("8.42"),
			RegularPay:    d("168.4"),
			OvertimeHours: d("0"),
			OvertimePay:   d("0"),
			HolidayHours:  d("0"),
			HolidayPay:    d("0"),
			PTOHours:      d("0"),
			PTOPay:        d("0"),
			UTOHours:      d("0"),
			TotalGrossPay: d("168.4"),
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    export.Format
		wantErr bool
	}{
		{"", export.FormatCSV, false},
		{"CSV", export.FormatCSV, false},
		{" xlsx ", export.FormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := export.ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, generic.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, export.Write(&buf, export.FormatCSV, testPeriod(), []export.Row{testRow()}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "user_id,name,team,hourly_rate,regular_hours"))
	assert.Equal(t, "u1,Test u1,operations,20.00,8.42,168.40,0.00,0.00,0.00,0.00,0.00,0.00,0.00,168.40", lines[1])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, export.Write(&buf, export.FormatXLSX, testPeriod(), []export.Row{testRow()}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	cell := func(ref string) string {
		v, err := f.GetCellValue("Payroll", ref, excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Pay period [2025-03-03, 2025-03-09]", cell("A1"))
	assert.Equal(t, "user_id", cell("A2"))
	assert.Equal(t, "total_gross_pay", cell("N2"))
	assert.Equal(t, "u1", cell("A3"))
	assert.Equal(t, "Test u1", cell("B3"))
	assert.Equal(t, "168.4", cell("N3"))
}

func TestFilenameAndContentType(t *testing.T) {
	assert.Equal(t, "payroll_2025-03-03_2025-03-09.csv", export.Filename(testPeriod(), export.FormatCSV))
	assert.Equal(t, "payroll_2025-03-03_2025-03-09.xlsx", export.Filename(testPeriod(), export.FormatXLSX))
	assert.Equal(t, "text/csv", export.FormatCSV.ContentType())
	assert.Contains(t, export.FormatXLSX.ContentType(), "spreadsheetml")
}

func TestLoad_JoinsEmployees(t *testing.T) {
	store := memory.New()
	workforcetest.Seed(t, store, workforcetest.Employee("u1"))
	row := testRow()
	workforcetest.Write(t, store, func(ctx context.Context, tx workforce.Tx) error {
		if err := tx.SavePayPeriod(ctx, testPeriod()); err != nil {
			return err
		}
		gone := row.Payroll
		gone.ID, gone.UserID = "c2", "departed"
		row.Payroll.ID = "c1"
		if err := tx.UpsertPayroll(ctx, row.Payroll); err != nil {
			return err
		}
		return tx.UpsertPayroll(ctx, gone)
	})

	period, rows, err := export.Load(context.Background(), store, "p1")

	require.NoError(t, err)
	assert.Equal(t, "p1", period.ID)
	require.Len(t, rows, 2)
	byID := map[string]export.Row{}
	for _, r := range rows {
		byID[r.Employee.ID] = r
	}
	assert.Equal(t, "Test u1", byID["u1"].Employee.FullName())
	assert.Empty(t, byID["departed"].Employee.FullName())

	_, _, err = export.Load(context.Background(), store, "missing")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}
