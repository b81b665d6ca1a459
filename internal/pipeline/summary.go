package pipeline

import (
	"fmt"
	"strings"

	"github.com/datascienceChris/datahub/internal/endpoint"
)

// Summary renders both reports and the run outcome for the CLI.
func (p *Pipeline) Summary() string {
	var b strings.Builder
	src, snk := p.source.Report(), p.sink.Report()

	fmt.Fprintf(&b, "Run %s\n", p.RunID)
	fmt.Fprintf(&b, "Source (%s) report:\n", p.source.Type())
	fmt.Fprintf(&b, "  resources scanned:   %d\n", src.ResourcesScanned)
	fmt.Fprintf(&b, "  work units produced: %d\n", src.WorkUnitsProduced)
	if len(src.Filtered) > 0 {
		fmt.Fprintf(&b, "  filtered:            %s\n", strings.Join(src.Filtered, ", "))
	}
	writeEntries(&b, "warnings", src.Warnings)
	writeEntries(&b, "failures", src.Failures)

	fmt.Fprintf(&b, "Sink (%s) report:\n", p.sink.Type())
	fmt.Fprintf(&b, "  records written:     %d\n", snk.RecordsWritten)
	writeEntries(&b, "warnings", snk.Warnings)
	writeEntries(&b, "failures", snk.Failures)

	switch p.Status() {
	case StatusFailure:
		b.WriteString("Pipeline finished with failures")
	case StatusWarning:
		b.WriteString("Pipeline finished with warnings")
	default:
		b.WriteString("Pipeline finished successfully")
	}
	if elapsed := p.Elapsed(); elapsed > 0 {
		fmt.Fprintf(&b, " in %.2fs", elapsed.Seconds())
	}
	b.WriteString("\n")
	return b.String()
}

func writeEntries(b *strings.Builder, label string, entries map[string][]string) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s:\n", label)
	for _, key := range endpoint.SortedKeys(entries) {
		for _, reason := range entries[key] {
			fmt.Fprintf(b, "    %s: %s\n", key, reason)
		}
	}
}
