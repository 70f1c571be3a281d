package featprobe

import (
	"fmt"
	"io"
	"strings"
)

// Report aggregates the results of checking a set of features.
type Report struct {
	Results []TestResult `json:"features" yaml:"features"`
}

// AllPresent returns true if every checked feature is present.
func (rep *Report) AllPresent() bool {
	return len(rep.Missing()) == 0
}

// Missing returns the names of absent features, in report order.
func (rep *Report) Missing() []string {
	var out []string
	for _, r := range rep.Results {
		if !r.Present {
			out = append(out, r.Feature)
		}
	}
	return out
}

// String returns a human-readable summary of all results.
func (rep *Report) String() string {
	var b strings.Builder
	_ = rep.WriteText(&b, false)
	return b.String()
}

// WriteText writes the summary to w.
// With symbols set, presence is rendered as check marks instead of yes/no.
func (rep *Report) WriteText(w io.Writer, symbols bool) error {
	width := 0
	for _, r := range rep.Results {
		width = max(width, len(r.Feature))
	}

	var b strings.Builder
	b.WriteString("Features:\n")
	for _, r := range rep.Results {
		writeResult(&b, r, width, symbols)
	}
	if missing := rep.Missing(); len(missing) > 0 {
		fmt.Fprintf(&b, "\nMissing: %s\n", strings.Join(missing, ", "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeResult(b *strings.Builder, r TestResult, width int, symbols bool) {
	status := "no"
	if r.Present {
		status = "yes"
	}
	if symbols {
		status = "✗"
		if r.Present {
			status = "✓"
		}
	}
	fmt.Fprintf(b, "  %-*s  %s", width, r.Feature, status)
	if r.Reason != "" {
		fmt.Fprintf(b, " (%s)", r.Reason)
	}
	b.WriteString("\n")
	if r.Resolution != "" {
		fmt.Fprintf(b, "  %-*s  hint: %s\n", width, "", r.Resolution)
	}
}
