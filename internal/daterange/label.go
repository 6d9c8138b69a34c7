package daterange

const labelLayout = "Jan 02, 2006"

// Label renders the interval for chart subtitles, e.g. "Jun 01, 2024" for a
// single day or "Jun 01, 2024 — Jun 15, 2024" for a range.
func Label(iv Interval) string {
	if iv.Start.Equal(iv.End) {
		return iv.Start.Format(labelLayout)
	}
	return iv.Start.Format(labelLayout) + " — " + iv.End.Format(labelLayout)
}
