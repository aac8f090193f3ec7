package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var tierColors = map[string]*color.Color{
	"Critical": color.New(color.FgRed, color.Bold),
	"Elevated": color.New(color.FgYellow, color.Bold),
	"Moderate": color.New(color.FgCyan),
	"Low":      color.New(color.FgGreen),
}

// TierCount is one entry of a tier summary line.
type TierCount struct {
	Tier  string
	Count int
}

// WriteTierSummary prints "Tiers:  Critical 2  Elevated 3 ..." with each
// tier coloured unless colour output is disabled.
func WriteTierSummary(w io.Writer, counts []TierCount) {
	fmt.Fprint(w, "Tiers:")
	for _, c := range counts {
		label := c.Tier
		if col, ok := tierColors[c.Tier]; ok {
			label = col.Sprint(c.Tier)
		}
		fmt.Fprintf(w, "  %s %d", label, c.Count)
	}
	fmt.Fprintln(w)
}
