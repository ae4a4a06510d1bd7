package measure

import "github.com/chewxy/math32"

// GarmentClass selects a size table.
type GarmentClass string

const (
	ClassTop      GarmentClass = "top"
	ClassBottom   GarmentClass = "bottom"
	ClassFootwear GarmentClass = "footwear"
	ClassHeadwear GarmentClass = "headwear"
)

// sizeTable maps a value to labels; bounds are exclusive upper limits and
// labels has one more entry than bounds.
type sizeTable struct {
	bounds []float32
	labels []string
}

func (t sizeTable) lookup(v float32) string {
	for i, b := range t.bounds {
		if v < b {
			return t.labels[i]
		}
	}
	return t.labels[len(t.labels)-1]
}

var tables = map[GarmentClass]sizeTable{
	ClassTop: {
		bounds: []float32{90, 95, 105, 115, 125},
		labels: []string{"XS", "S", "M", "L", "XL", "XXL"},
	},
	ClassBottom: {
		bounds: []float32{80, 90, 100, 110, 120},
		labels: []string{"XS", "S", "M", "L", "XL", "XXL"},
	},
	ClassFootwear: {
		bounds: []float32{23, 24, 25, 26, 27, 28},
		labels: []string{"5", "6", "7", "8", "9", "10", "11"},
	},
	ClassHeadwear: {
		bounds: []float32{54, 56, 58, 60},
		labels: []string{"XS", "S", "M", "L", "XL"},
	},
}

// SizeFor maps measurements to a size label with the default calibration.
func SizeFor(m Measurements, class GarmentClass) (string, bool) {
	return DefaultCalibration.SizeFor(m, class)
}

// SizeFor fails without a pixel to centimetre factor or for an unknown class.
// Footwear and headwear need a total height.
func (c Calibration) SizeFor(m Measurements, class GarmentClass) (string, bool) {
	table, ok := tables[class]
	if !ok || !m.Scaled() {
		return "", false
	}
	heightCm := m.TotalHeight * m.PixelsToCm

	var v float32
	switch class {
	case ClassTop:
		v = m.ChestWidth * m.PixelsToCm
	case ClassBottom:
		v = (m.WaistWidth + m.HipWidth) / 2 * m.PixelsToCm
	case ClassFootwear:
		if heightCm <= 0 {
			return "", false
		}
		v = heightCm * c.FootToHeight
	case ClassHeadwear:
		if heightCm <= 0 {
			return "", false
		}
		v = heightCm * c.HeadToHeight * math32.Pi
	}
	return table.lookup(v), true
}

// Sizes returns a label for every class that can be resolved.
func (c Calibration) Sizes(m Measurements) map[GarmentClass]string {
	out := make(map[GarmentClass]string, len(tables))
	for _, class := range []GarmentClass{ClassTop, ClassBottom, ClassFootwear, ClassHeadwear} {
		if label, ok := c.SizeFor(m, class); ok {
			out[class] = label
		}
	}
	return out
}
