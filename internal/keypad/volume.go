package keypad

import "math"

// Volume bar mapping. The bar spans 160px starting at x=40; 1.6px per
// percent. Touches at or right of VolumeSnapX land on 100%.
const (
	VolumeOriginX = 40
	VolumeScale   = 1.6
	VolumeSnapX   = 185

	MinVolumeDB  = -79
	dBPerPercent = 0.79
)

// PercentFromX maps a touch x coordinate on the volume bar to 0..100.
func PercentFromX(x int) float64 {
	if x >= VolumeSnapX {
		return 100
	}
	return clampPercent(float64(x-VolumeOriginX) / VolumeScale)
}

// XFromPercent is the inverse of PercentFromX for the bar fill position.
func XFromPercent(percent float64) int {
	return VolumeOriginX + int(math.Round(clampPercent(percent)*VolumeScale))
}

// DBFromPercent converts a percentage to the AmpliPi dB scale
// (MinVolumeDB..0), truncating toward zero.
func DBFromPercent(percent float64) int {
	return int(clampPercent(percent)*dBPerPercent + MinVolumeDB)
}

// PercentFromDB converts an AmpliPi volume in dB to a percentage.
func PercentFromDB(vol int) float64 {
	if vol >= 0 {
		return 100
	}
	return clampPercent(float64(vol)/dBPerPercent + 100)
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
