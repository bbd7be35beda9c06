// Package report produces the end-of-run artifacts: the customer log text
// file, the dashboard HTML (charts), and the heatmap PNG. It only reads
// state the pipeline and store have already finalized.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/cafesense/occupancy.report/internal/db"
	"github.com/cafesense/occupancy.report/internal/units"
	"github.com/cafesense/occupancy.report/internal/vision"
)

// stillInsideSlack is how close to the end of the video an identity's last
// sighting must be to count as "Still inside" rather than "Left".
const stillInsideSlack = 2.0

// WriteCustomerLog writes the per-customer and per-table text report.
func WriteCustomerLog(w io.Writer, videoSeconds float64, summaries []*vision.IdentitySummary, totals []db.TableTotal) error {
	fmt.Fprintln(w, "CAFE CUSTOMER ANALYTICS LOG")
	fmt.Fprintln(w, "===========================")
	fmt.Fprintf(w, "Processed Video Duration: %.2fs\n", videoSeconds)
	fmt.Fprintf(w, "Total Customers: %d\n\n", len(summaries))

	fmt.Fprintln(w, "CUSTOMER RECORDS")
	for _, sum := range summaries {
		fmt.Fprintf(w, "Customer ID: %d\n", sum.ID)
		fmt.Fprintf(w, "First Seen: %s\n", units.FormatClock(sum.FirstSeen))
		fmt.Fprintf(w, "Last Seen: %s\n", units.FormatClock(sum.LastSeen))
		fmt.Fprintf(w, "Total Appearance Time: %s\n", units.FormatDuration(sum.TotalSeconds()))

		fmt.Fprintln(w, "Table Usage:")
		if len(sum.TableSeconds) == 0 {
			fmt.Fprintln(w, "  * (No significant table usage detected)")
		} else {
			names := make([]string, 0, len(sum.TableSeconds))
			for name := range sum.TableSeconds {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(w, "  * %s: %s\n", name, units.FormatDuration(sum.TableSeconds[name]))
			}
		}

		status := "Left"
		if videoSeconds-sum.LastSeen < stillInsideSlack {
			status = "Still inside"
		}
		fmt.Fprintf(w, "Status: %s\n", status)
		fmt.Fprintln(w, "------------------------------")
	}

	fmt.Fprintln(w, "\nTABLE USAGE STATISTICS")
	if len(totals) == 0 {
		fmt.Fprintln(w, "  * (No confirmed table sessions)")
	}
	for _, t := range totals {
		fmt.Fprintf(w, "  * %s: %s across %d session(s)\n",
			t.TableName, units.FormatDuration(t.TotalSeconds), t.SessionCount)
	}
	return nil
}

// SaveCustomerLog writes the text report to path.
func SaveCustomerLog(path string, videoSeconds float64, summaries []*vision.IdentitySummary, totals []db.TableTotal) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create customer log: %w", err)
	}
	defer f.Close()
	return WriteCustomerLog(f, videoSeconds, summaries, totals)
}
