package panda

import "math"

// THDMaxOrder is the highest order included in THD, the LF limit of the format
const THDMaxOrder = 40

// THD returns the total harmonic distortion of s in percent of the fundamental,
// summed over integer orders 2 through THDMaxOrder. It reports false when the
// spectrum has no fundamental to relate to.
func THD(s Spectrum) (float64, bool) {
	fundamental, ok := s.Lookup(1)
	if !ok || fundamental.IsZero() {
		return 0, false
	}

	var sum float64
	for _, h := range s {
		if h.Order < 2 || h.Order > THDMaxOrder || h.Order != math.Trunc(h.Order) {
			continue
		}
		sum += h.Magnitude * h.Magnitude
	}
	return 100 * math.Sqrt(sum) / fundamental.Magnitude, true
}
