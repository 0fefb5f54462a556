package bankfeed

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/money"
)

// Column aliases banks commonly use. Matching is case-insensitive and
// order-independent.
var headerAliases = map[string]string{
	"date":             "date",
	"transaction date": "date",
	"posted":           "date",
	"description":      "description",
	"memo":             "description",
	"details":          "description",
	"amount":           "amount",
	"value":            "amount",
}

type feedLayout struct {
	date, description, amount int
}

// ValidateHeaders reports whether the feed's first line carries the three
// required columns.
func ValidateHeaders(raw []byte) bool {
	_, err := parseLayout(raw)
	return err == nil
}

func parseLayout(raw []byte) (feedLayout, error) {
	r := csv.NewReader(strings.NewReader(string(raw)))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return feedLayout{}, ErrMissingHeaders
	}
	layout := feedLayout{date: -1, description: -1, amount: -1}
	for i, col := range header {
		switch headerAliases[strings.ToLower(strings.TrimSpace(col))] {
		case "date":
			if layout.date == -1 {
				layout.date = i
			}
		case "description":
			if layout.description == -1 {
				layout.description = i
			}
		case "amount":
			if layout.amount == -1 {
				layout.amount = i
			}
		}
	}
	if layout.date == -1 || layout.description == -1 || layout.amount == -1 {
		return feedLayout{}, ErrMissingHeaders
	}
	return layout, nil
}

var feedDateFormats = []string{"2006-01-02", "02/01/2006", "01/02/2006", "2 Jan 2006"}

// Parse reads the feed into rows, dropping and counting lines that cannot
// be understood. Zero-amount lines are dropped as non-transactions. Blank
// lines are skipped silently and do not count. Lines with broken CSV
// quoting drop like any other malformed line; they never abort the feed.
func Parse(raw []byte) ([]ParsedRow, int, error) {
	layout, err := parseLayout(raw)
	if err != nil {
		return nil, 0, err
	}
	r := csv.NewReader(strings.NewReader(string(raw)))
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		return nil, 0, ErrMissingHeaders
	}

	var (
		rows    []ParsedRow
		skipped int
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			skipped++
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		if isBlank(rec) {
			continue
		}
		row, ok := parseRecord(layout, rec)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRecord(layout feedLayout, rec []string) (ParsedRow, bool) {
	max := layout.date
	if layout.description > max {
		max = layout.description
	}
	if layout.amount > max {
		max = layout.amount
	}
	if len(rec) <= max {
		return ParsedRow{}, false
	}

	date, ok := parseFeedDate(strings.TrimSpace(rec[layout.date]))
	if !ok {
		return ParsedRow{}, false
	}
	desc := strings.TrimSpace(rec[layout.description])
	if desc == "" {
		return ParsedRow{}, false
	}
	amount, ok := parseFeedAmount(strings.TrimSpace(rec[layout.amount]))
	if !ok || amount == 0 {
		return ParsedRow{}, false
	}
	return ParsedRow{Date: date, Description: desc, Amount: amount}, true
}

func parseFeedDate(s string) (time.Time, bool) {
	for _, layout := range feedDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseFeedAmount(s string) (money.Cents, bool) {
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	cents, err := money.FromDecimal(d)
	if err != nil {
		return 0, false
	}
	return cents, true
}
