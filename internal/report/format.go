package report

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

var rateUnits = []string{"B/s", "KB/s", "MB/s", "GB/s", "TB/s"}

// HumanBytesPerSec formats a throughput with 1024-based units and two decimals,
// e.g. 1536 -> "1.50 KB/s". Values beyond TB/s stay in TB/s.
func HumanBytesPerSec(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	i := 0
	for v >= 1024 && i < len(rateUnits)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", v, rateUnits[i])
}

// FormatIOPS rounds to two decimals and adds thousands separators.
func FormatIOPS(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return humanize.Commaf(math.Round(v*100) / 100)
}
