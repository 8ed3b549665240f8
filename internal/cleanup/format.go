package cleanup

import (
	"strconv"
)

var units = []string{"B", "KB", "MB", "GB"}

// FormatBytes renders n in 1024-based units, using the largest unit the value
// reaches and at most two decimals.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(round2(v), 'f', -1, 64) + " " + units[i]
}

func round2(v float64) float64 {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	r, _ := strconv.ParseFloat(s, 64)
	return r
}
