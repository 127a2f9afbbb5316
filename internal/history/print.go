package history

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// PrintList writes records as an aligned table.
func PrintList(w io.Writer, records []Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No recorded runs.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tTARGET\tDURATION\tREQUESTS\tERRORS\tP95\tVUS\tRESULT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.2f%%\t%.2fms\t%d\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Target,
			r.Duration.Round(time.Second),
			r.Total,
			r.ErrorRate*100,
			r.P95LatencyMs,
			r.VUsMax,
			result(r),
		)
	}
	return tw.Flush()
}

func result(r Record) string {
	switch {
	case r.AbortedBy != "":
		return "aborted (" + r.AbortedBy + ")"
	case r.Passed:
		return "passed"
	default:
		return "failed"
	}
}
