package bankfeed

import (
	"testing"
	"time"

	"github.com/ledgerline/ledgerline/internal/money"
)

func TestValidateHeaders(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"canonical", "Date,Description,Amount\n", true},
		{"reordered", "amount,date,description\n", true},
		{"case insensitive", "DATE,DESCRIPTION,AMOUNT\n", true},
		{"bank aliases", "Transaction Date,Memo,Value\n", true},
		{"extra columns", "Date,Description,Amount,Balance,Reference\n", true},
		{"missing amount", "Date,Description\n", false},
		{"missing all", "Foo,Bar,Baz\n", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateHeaders([]byte(tc.raw)); got != tc.want {
				t.Errorf("ValidateHeaders = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseDropsBadRowsAndCounts(t *testing.T) {
	feed := "Date,Description,Amount\n" +
		"2024-01-05,Coffee,-4.50\n" +
		"\n" +
		"not-a-date,Groceries,-20.00\n" +
		"2024-01-06,,-3.00\n" +
		"2024-01-07,Fee,abc\n" +
		"2024-01-08,Noise,0.00\n" +
		"2024-01-06,Refund,10.00\n"

	rows, skipped, err := Parse([]byte(feed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if skipped != 4 {
		t.Errorf("skipped = %d, want 4 (blank lines do not count)", skipped)
	}
	if rows[0].Amount != money.Cents(-450) {
		t.Errorf("outflow amount = %d, want -450", rows[0].Amount)
	}
	if rows[1].Amount != money.Cents(1000) {
		t.Errorf("inflow amount = %d, want 1000", rows[1].Amount)
	}
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if !rows[0].Date.Equal(want) {
		t.Errorf("date = %s, want %s", rows[0].Date, want)
	}
}

func TestParseRejectsSubCentPrecision(t *testing.T) {
	feed := "Date,Description,Amount\n2024-01-05,Interest,-4.505\n"
	rows, skipped, err := Parse([]byte(feed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 0 || skipped != 1 {
		t.Errorf("rows=%d skipped=%d, want 0/1", len(rows), skipped)
	}
}

func TestParseReordersColumns(t *testing.T) {
	feed := "Amount,Date,Description\n-12.00,2024-02-01,Hosting\n"
	rows, _, err := Parse([]byte(feed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 1 || rows[0].Description != "Hosting" || rows[0].Amount != money.Cents(-1200) {
		t.Errorf("unexpected row %+v", rows)
	}
}

func TestParseMissingHeadersFails(t *testing.T) {
	if _, _, err := Parse([]byte("Foo,Bar\n1,2\n")); err == nil {
		t.Fatal("expected header error")
	}
}

func TestParseShortRecordCountsAsSkipped(t *testing.T) {
	feed := "Date,Description,Amount\n2024-01-05,OnlyTwoFields\n2024-01-06,Rent,-900.00\n"
	rows, skipped, err := Parse([]byte(feed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 1 || skipped != 1 {
		t.Errorf("rows=%d skipped=%d, want 1/1", len(rows), skipped)
	}
}

func TestParseBrokenQuotingDropsLineOnly(t *testing.T) {
	feed := "Date,Description,Amount\n" +
		"2024-01-05,Coffee,-4.50\n" +
		"2024-01-06,He said \"hi,-20.00\n" +
		"2024-01-07,Refund,10.00\n"
	rows, skipped, err := Parse([]byte(feed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 2 || skipped != 1 {
		t.Fatalf("rows=%d skipped=%d, want 2/1", len(rows), skipped)
	}
	if rows[0].Description != "Coffee" || rows[1].Description != "Refund" {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestParseThousandsSeparators(t *testing.T) {
	feed := "Date,Description,Amount\n2024-03-01,Payroll,\"-1,250.00\"\n"
	rows, _, err := Parse([]byte(feed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 1 || rows[0].Amount != money.Cents(-125000) {
		t.Errorf("unexpected rows %+v", rows)
	}
}
