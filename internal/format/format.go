// Package format converts raw byte and time counters into the human units
// shown next to running jobs. All functions are pure.
package format

import (
	"fmt"
	"math"
)

// UnknownETA is shown whenever no estimate can be computed.
const UnknownETA = "--:--"

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// Bytes renders a byte count on a 1024-based ladder with one decimal place.
// Whole bytes are shown without a decimal ("512 B", "1.5 MB").
func Bytes(n int64) string {
	size := float64(n)
	for _, unit := range byteUnits {
		if size < 1024.0 {
			if unit == "B" {
				return fmt.Sprintf("%d %s", int64(size), unit)
			}
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.1f EB", size)
}

// Speed renders a transfer rate, or "" when the rate is zero.
func Speed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return ""
	}
	return Bytes(int64(bytesPerSec)) + "/s"
}

// ETA estimates time remaining for a transfer as H:MM:SS, or M:SS under an
// hour. Returns UnknownETA when the rate is zero or the remaining byte count
// is unknown (negative). Sub-second remainders round up, never down to 0:00
// while bytes are still outstanding.
func ETA(remainingBytes int64, bytesPerSec float64) string {
	if bytesPerSec <= 0 || remainingBytes < 0 {
		return UnknownETA
	}
	secs := int64(math.Ceil(float64(remainingBytes) / bytesPerSec))
	return Clock(secs)
}

// Clock renders a second count as H:MM:SS, or M:SS under an hour.
func Clock(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
