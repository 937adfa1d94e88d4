package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/fin-harvest/internal/model"
	"github.com/sells-group/fin-harvest/internal/quantity"
)

var parseCmd = &cobra.Command{
	Use:   "parse <text>...",
	Short: "Show how statements are cleaned, categorized and quantified",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatParse(os.Stdout, args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

// formatParse writes one block per input: cleaned text, matching
// categories, and the parsed percentage and amount.
func formatParse(out io.Writer, inputs []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, in := range inputs {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "Text:\t%s\n", quantity.CleanText(in))

		var cats []string
		for _, c := range model.AllCategories() {
			if c.Matches(in) {
				cats = append(cats, string(c))
			}
		}
		_, _ = fmt.Fprintf(w, "Categories:\t%s\n", orDash(strings.Join(cats, ", ")))

		pct := "-"
		if v, ok := quantity.ExtractPercentage(in); ok {
			pct = fmt.Sprintf("%g%%", v)
		}
		_, _ = fmt.Fprintf(w, "Percentage:\t%s\n", pct)

		amt := "-"
		if v, ok := quantity.ExtractAmount(in); ok {
			amt = v.String()
		}
		_, _ = fmt.Fprintf(w, "Amount:\t%s\n", amt)
	}
	_ = w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
