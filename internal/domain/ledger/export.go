package ledger

import (
	"fmt"
	"strings"
)

// CSVHeader is the first line of every export.
const CSVHeader = "Call,Query,InputTokens,OutputTokens,TotalTokens,Cost"

// ExportCSV renders the ledger as comma-separated text: the header line, then
// one row per call. The query is always double-quoted with embedded quotes
// doubled; cost carries exactly 6 decimal digits.
func (l *Ledger) ExportCSV() string {
	var b strings.Builder
	b.WriteString(CSVHeader)
	b.WriteByte('\n')
	for _, r := range l.records {
		escaped := strings.ReplaceAll(r.query, `"`, `""`)
		fmt.Fprintf(&b, "%d,\"%s\",%d,%d,%d,%.6f\n",
			r.number, escaped,
			r.usage.PromptTokens, r.usage.CompletionTokens, r.usage.TotalTokens,
			r.cost)
	}
	return b.String()
}
