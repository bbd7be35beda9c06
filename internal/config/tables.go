package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/cafesense/occupancy.report/internal/geo"
	"github.com/cafesense/occupancy.report/internal/vision"
)

// LoadTables reads the table ROI file: a JSON object mapping table name to
// an ordered list of polygon vertices in frame pixel coordinates,
//
//	{ "Table-1": [[120, 340], [260, 340], [260, 480], [120, 480]] }
//
// A table with fewer than 3 vertices, an empty file, or any pair of
// overlapping polygons is a configuration error: the loader fails fast and
// the run never starts. This is the only fatal path in the system.
func LoadTables(path string) ([]vision.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read table config: %w", err)
	}

	var raw map[string][][2]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse table config: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("table config %s defines no tables", path)
	}

	tables := make([]vision.Table, 0, len(raw))
	for name, verts := range raw {
		if name == "" {
			return nil, fmt.Errorf("table config contains an unnamed table")
		}
		if len(verts) < 3 {
			return nil, fmt.Errorf("table %q has %d vertices, need at least 3", name, len(verts))
		}
		outline := make(geo.Polygon, len(verts))
		for i, v := range verts {
			outline[i] = geo.Point{X: v[0], Y: v[1]}
		}
		tables = append(tables, vision.Table{Name: name, Outline: outline})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	// Disjointness is a precondition of the containment contract: reject
	// overlap rather than guess a tie-break.
	for i := 0; i < len(tables); i++ {
		for j := i + 1; j < len(tables); j++ {
			if tables[i].Outline.Overlaps(tables[j].Outline) {
				return nil, fmt.Errorf("tables %q and %q overlap; table regions must be disjoint",
					tables[i].Name, tables[j].Name)
			}
		}
	}
	return tables, nil
}
