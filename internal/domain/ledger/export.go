package ledger

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
)

// ExportHeader is the first row of every ledger CSV
var ExportHeader = []string{
	"Date", "Type", "Flow", "Description", "Amount", "Cost", "Profit",
	"Margin %", "Quantity", "Order #", "Product", "Customer Email", "Status",
}

const exportDateLayout = "2006-01-02 15:04:05"

// CSVWriter writes ledger entries as CSV rows
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter writes the header and returns a writer for the rows
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return nil, err
	}
	return &CSVWriter{w: cw}, nil
}

// Write appends one entry
func (c *CSVWriter) Write(e *Entry) error {
	email := ""
	if e.CustomerEmail != nil {
		email = *e.CustomerEmail
	}

	return c.w.Write([]string{
		e.CreatedAt.UTC().Format(exportDateLayout),
		string(e.Kind),
		string(e.Flow),
		cell(e.Description),
		e.Amount.StringFixed(2),
		e.CostAmount.StringFixed(2),
		e.Profit.StringFixed(2),
		e.MarginPercent.StringFixed(2),
		strconv.Itoa(e.Quantity),
		cell(e.Metadata.String(MetaOrderNumber)),
		cell(e.Metadata.String(MetaProductName)),
		cell(email),
		string(e.Status),
	})
}

// Close flushes buffered rows
func (c *CSVWriter) Close() error {
	c.w.Flush()
	return c.w.Error()
}

// cell keeps spreadsheet apps from evaluating free text as a formula
func cell(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}
