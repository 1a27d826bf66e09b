package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"gopkg.in/yaml.v3"
)

// printer renders command results in the format chosen with -o
type printer struct {
	w      io.Writer
	format string
	msg    *message.Printer
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case "table", "json", "yaml":
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
	return &printer{w: w, format: format, msg: message.NewPrinter(language.English)}, nil
}

// print writes v as json or yaml, or calls table with a tab-aligned writer
func (p *printer) print(v any, table func(tw *tabwriter.Writer)) error {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// go through JSON so keys match the wire names
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

// message prints a plain line, only in table mode
func (p *printer) message(format string, args ...any) {
	if p.format == "table" {
		fmt.Fprintf(p.w, format+"\n", args...)
	}
}

// amount formats money with grouping and two decimals, e.g. 1,250.00
func (p *printer) amount(d decimal.Decimal) string {
	return p.msg.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(2)))
}

func date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}

var titleCaser = cases.Title(language.English)

func roleList(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = titleCaser.String(n)
	}
	return strings.Join(out, ", ")
}

func optional(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
