package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func newFlags(name string, w io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(w)
	return fs
}

// idFlag is an optional positive id
type idFlag struct{ v *int64 }

func (f *idFlag) String() string {
	if f.v == nil {
		return ""
	}
	return strconv.FormatInt(*f.v, 10)
}

func (f *idFlag) Set(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	f.v = &n
	return nil
}

func (f *idFlag) value() int64 {
	if f.v == nil {
		return 0
	}
	return *f.v
}

// dateFlag is an optional YYYY-MM-DD date
type dateFlag struct{ v *time.Time }

func (f *dateFlag) String() string {
	if f.v == nil {
		return ""
	}
	return f.v.Format(time.DateOnly)
}

func (f *dateFlag) Set(s string) error {
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return fmt.Errorf("must be a date like 2025-01-31")
	}
	f.v = &t
	return nil
}

// amountFlag is an optional decimal amount
type amountFlag struct{ v *decimal.Decimal }

func (f *amountFlag) String() string {
	if f.v == nil {
		return ""
	}
	return f.v.String()
}

func (f *amountFlag) Set(s string) error {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return fmt.Errorf("must be a decimal amount")
	}
	f.v = &d
	return nil
}

func (f *amountFlag) value() decimal.Decimal {
	if f.v == nil {
		return decimal.Zero
	}
	return *f.v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
