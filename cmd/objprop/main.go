// Command objprop lists the object types of a leeway property table.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/pthm-cable/leeway/objprop"
)

func main() {
	tablePath := flag.String("table", "", "Path to an OBJECTPROP.DAT table (empty = bundled table)")
	key := flag.String("key", "", "Show only the object type with this key")
	flag.Parse()

	table, err := objprop.LoadFile(*tablePath)
	if err != nil {
		slog.Error("failed to load property table", "error", err)
		os.Exit(1)
	}

	entries := table.Entries()
	if *key != "" {
		p, ok := table.Lookup(*key)
		if !ok {
			slog.Error("unknown object type", "key", *key, "types", table.Len())
			os.Exit(1)
		}
		entries = []objprop.Properties{*p}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tKEY\tDW SLOPE\tDW OFFSET\tDW STD\tCWR SLOPE\tCWR OFFSET\tCWR STD\tCWL SLOPE\tCWL OFFSET\tCWL STD\tDESCRIPTION")
	for i := range entries {
		p := &entries[i]
		dw, cwr, cwl := p.Downwind(), p.CrosswindRight(), p.CrosswindLeft()
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
			p.Index, p.Key,
			dw.Slope, dw.Offset, dw.Std,
			cwr.Slope, cwr.Offset, cwr.Std,
			cwl.Slope, cwl.Offset, cwl.Std,
			p.Description,
		)
	}
	w.Flush()
}
