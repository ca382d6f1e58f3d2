package dashboard

import (
	"math"
	"strconv"
	"strings"
)

const (
	barFull    = "🟩"
	barEmpty   = "⬛"
	barDefault = 10
)

// Bar renders current/total as a ten-cell usage bar.
func Bar(current, total string) string {
	return BarN(current, total, barDefault)
}

// BarN renders current/total as a bar of length cells. Quantities are sizes
// such as "512MB" or "1.5 gb"; anything unparseable counts as zero.
func BarN(current, total string, length int) string {
	if length <= 0 {
		return ""
	}

	filled := 0
	if t := ParseMB(total); t > 0 {
		frac := ParseMB(current) / t
		switch {
		case frac < 0:
			frac = 0
		case frac > 1:
			frac = 1
		}
		// epsilon keeps 0.3*10 from flooring to 2
		filled = int(math.Floor(frac*float64(length) + 1e-9))
		if filled > length {
			filled = length
		}
	}

	return strings.Repeat(barFull, filled) + strings.Repeat(barEmpty, length-filled)
}

// ParseMB converts a human size in MB or GB to megabytes. A bare number is
// taken as MB.
func ParseMB(s string) float64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "GB"):
		mult = 1024
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		s = strings.TrimSuffix(s, "MB")
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v * mult
}

// mbString formats whole megabytes for Bar.
func mbString(mb int) string {
	return strconv.Itoa(mb) + "MB"
}
