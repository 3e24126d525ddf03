package render

import (
	"fmt"

	"github.com/banshee-data/rutting.report/internal/grid"
	"github.com/banshee-data/rutting.report/internal/security"
)

// ProfileFilename names a download of p with the given extension
// (".csv", ".png"). Longitudinal names carry the lonID span they cover.
func ProfileFilename(p *grid.Profile, ext string) string {
	if p.Kind == grid.Transverse {
		return security.SanitizeFilename(fmt.Sprintf("transProfile_scan_%d%s", p.Index, ext))
	}
	first, last := 0, 0
	if n := p.Len(); n > 0 {
		first, last = p.Rows[0].LonID, p.Rows[n-1].LonID
	}
	return security.SanitizeFilename(fmt.Sprintf("lonProfile_%d_%d to %d%s", p.Index, first, last, ext))
}

// GridFilename names a CSV download of g.
func GridFilename(g *grid.Grid, filtered bool) string {
	kind := grid.FilterOriginal
	if filtered {
		kind = grid.FilterFiltered
	}
	return security.SanitizeFilename(fmt.Sprintf("grid_%d to %d_%s.csv", g.LonBase(), g.LonBase()+g.Rows()-1, kind))
}
