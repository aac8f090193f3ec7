// Package report renders view rows as aligned tables, CSV, JSON or an XLSX
// workbook. Rows are slices of structs; columns come from their json tags.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Format selects an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat accepts table, csv or json in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", eris.Errorf("report: unknown format %q (want table, csv or json)", s)
	}
}

var (
	printer = message.NewPrinter(language.English)
	upper   = cases.Upper(language.English)
)

// Money formats v with thousands separators and two decimals.
func Money(v float64) string {
	return printer.Sprintf("%.2f", v)
}

// Write renders rows to w. rows must be a slice of structs or struct pointers,
// or a single struct for JSON.
func Write(w io.Writer, format Format, rows any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(rows), "report: encode json")
	case FormatCSV:
		return writeCSV(w, rows)
	case FormatTable, "":
		return writeTable(w, rows)
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}

func writeCSV(w io.Writer, rows any) error {
	t, err := flatten(rows)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, r := range t.rows {
		rec := make([]string, len(r))
		for i, v := range r {
			rec[i] = plain(v)
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "report: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

func writeTable(w io.Writer, rows any) error {
	t, err := flatten(rows)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	head := make([]string, len(t.header))
	for i, h := range t.header {
		head[i] = upper.String(strings.ReplaceAll(h, "_", " "))
	}
	fmt.Fprintln(tw, strings.Join(head, "\t"))

	if len(t.rows) == 0 {
		fmt.Fprintln(tw, "(no rows)")
	}
	for _, r := range t.rows {
		cells := make([]string, len(r))
		for i, v := range r {
			cells[i] = pretty(t.header[i], v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return eris.Wrap(tw.Flush(), "report: flush table")
}

// plain renders a cell for machine consumption.
func plain(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []string:
		return strings.Join(x, "; ")
	default:
		return fmt.Sprint(x)
	}
}

// pretty renders a cell for people: money columns get separators, other
// floats are rounded, booleans become yes or blank.
func pretty(column string, v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float64:
		if isMoney(column) {
			return Money(x)
		}
		return printer.Sprintf("%.3f", x)
	case bool:
		if x {
			return "yes"
		}
		return ""
	case []string:
		return strings.Join(x, ", ")
	default:
		return fmt.Sprint(x)
	}
}

func isMoney(column string) bool {
	for _, s := range []string{"spend", "capex", "opex"} {
		if strings.Contains(column, s) && !strings.Contains(column, "percentile") && !strings.Contains(column, "ratio") {
			return true
		}
	}
	return false
}
