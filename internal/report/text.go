package report

import (
	"context"
	"fmt"
	"io"
	"strings"
)

const (
	doubleLine = "\u2550" // ═
	singleLine = "\u2500" // ─
	lineWidth  = 50
)

// TextReporter outputs plain terminal text.
type TextReporter struct {
	// Verbose controls detail level: 0=parameters only, 1=+request body and
	// technique titles.
	Verbose int
}

// Format returns "text".
func (r *TextReporter) Format() string {
	return "text"
}

// Generate writes the formatted result to w.
func (r *TextReporter) Generate(ctx context.Context, result *Result, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b := &strings.Builder{}

	doubleBar := strings.Repeat(doubleLine, lineWidth)
	singleBar := strings.Repeat(singleLine, lineWidth)

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintln(b, "sqltarget - Injection Point Resolution")
	fmt.Fprintln(b, doubleBar)

	// Target info
	fmt.Fprintf(b, "Target: %s\n", result.URL)
	fmt.Fprintf(b, "Method: %s\n", result.Method)
	if hint := result.PostHint.String(); hint != "" {
		fmt.Fprintf(b, "Body:   %s\n", hint)
	}
	if r.Verbose > 0 && result.Data != "" {
		fmt.Fprintf(b, "Data:   %s\n", result.Data)
	}

	fp := result.Fingerprint
	if fp.DBMS != "" {
		dbmsInfo := fp.DBMS
		if len(fp.Versions) > 0 {
			dbmsInfo += " " + strings.Join(fp.Versions, ", ")
		}
		fmt.Fprintf(b, "DBMS:   %s\n", dbmsInfo)
	}
	if fp.OS != "" {
		fmt.Fprintf(b, "OS:     %s\n", fp.OS)
	}

	if result.Err != nil {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintf(b, "Error: %s\n", result.Err)
	}

	// Parameters
	locations := result.Params.Locations()
	if len(locations) == 0 && result.Err == nil {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintln(b, "No testable parameters.")
	}
	for _, loc := range locations {
		d := result.Params.Get(loc)
		fmt.Fprintln(b, singleBar)
		fmt.Fprintf(b, "%s (%d parameter(s))\n", loc, d.Len())
		d.Each(func(name, value string) {
			fmt.Fprintf(b, "  %s = %s\n", name, value)
		})
	}

	// Resumed injection points
	if len(result.Injections) > 0 {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintln(b, "Resumed injection points:")
		for _, inj := range result.Injections {
			var codes []string
			for _, t := range inj.Techniques() {
				codes = append(codes, string(t))
			}
			fmt.Fprintf(b, "  %s %s [%s]\n", inj.Place, inj.Parameter, strings.Join(codes, ","))
			if r.Verbose > 0 {
				for _, t := range inj.Techniques() {
					fmt.Fprintf(b, "    %s: %s\n", t.Name(), inj.Data[t].Title)
				}
			}
		}
	}

	// Summary
	fmt.Fprintln(b, doubleBar)
	fmt.Fprintf(b, "Summary: %d testable parameter(s) in %d place(s), %d resumed injection point(s)\n",
		result.Params.Count(), len(locations), len(result.Injections))
	fmt.Fprintln(b, doubleBar)

	_, err := io.WriteString(w, b.String())
	return err
}
