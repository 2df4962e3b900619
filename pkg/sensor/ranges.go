package sensor

import "fmt"

// Range describes the physical constraints for one sensor type.
//
// AbsMin/AbsMax bound what the hardware could ever report; values outside
// are treated as invalid. UnusualMin/UnusualMax bound the band of plausible
// real-world readings; values between the two bands are possible but rare.
// LargeJump and ModerateJump are the per-reading deltas considered
// suspicious for this quantity.
type Range struct {
	AbsMin       float64
	AbsMax       float64
	UnusualMin   float64
	UnusualMax   float64
	Unit         string
	LargeJump    float64
	ModerateJump float64
}

var ranges = map[Type]Range{
	TypeTemperature: {
		AbsMin: -50, AbsMax: 150,
		UnusualMin: -10, UnusualMax: 100,
		Unit:      "°C",
		LargeJump: 10, ModerateJump: 5,
	},
	TypeHumidity: {
		AbsMin: 0, AbsMax: 100,
		UnusualMin: 5, UnusualMax: 95,
		Unit:      "%",
		LargeJump: 20, ModerateJump: 10,
	},
	TypePressure: {
		AbsMin: 800, AbsMax: 1200,
		UnusualMin: 950, UnusualMax: 1050,
		Unit:      "hPa",
		LargeJump: 20, ModerateJump: 10,
	},
	TypeAirQuality: {
		AbsMin: 0, AbsMax: 500,
		UnusualMin: 0, UnusualMax: 300,
		Unit:      "AQI",
		LargeJump: 100, ModerateJump: 50,
	},
	TypeCO2: {
		AbsMin: 0, AbsMax: 10000,
		UnusualMin: 300, UnusualMax: 5000,
		Unit:      "ppm",
		LargeJump: 1000, ModerateJump: 400,
	},
	TypeNoise: {
		AbsMin: 0, AbsMax: 194,
		UnusualMin: 20, UnusualMax: 130,
		Unit:      "dB",
		LargeJump: 40, ModerateJump: 20,
	},
	TypeWindSpeed: {
		AbsMin: 0, AbsMax: 120,
		UnusualMin: 0, UnusualMax: 60,
		Unit:      "m/s",
		LargeJump: 25, ModerateJump: 10,
	},
	TypeWindDirection: {
		AbsMin: 0, AbsMax: 360,
		UnusualMin: 0, UnusualMax: 360,
		Unit:      "°",
		LargeJump: 180, ModerateJump: 90,
	},
	TypePrecipitation: {
		AbsMin: 0, AbsMax: 1000,
		UnusualMin: 0, UnusualMax: 300,
		Unit:      "mm",
		LargeJump: 100, ModerateJump: 50,
	},
	TypeUVIndex: {
		AbsMin: 0, AbsMax: 20,
		UnusualMin: 0, UnusualMax: 11,
		Unit:      "index",
		LargeJump: 8, ModerateJump: 4,
	},
	TypeSoilMoisture: {
		AbsMin: 0, AbsMax: 100,
		UnusualMin: 5, UnusualMax: 95,
		Unit:      "%",
		LargeJump: 30, ModerateJump: 15,
	},
	TypePH: {
		AbsMin: 0, AbsMax: 14,
		UnusualMin: 3, UnusualMax: 10,
		Unit:      "pH",
		LargeJump: 3, ModerateJump: 1.5,
	},
}

// RangeFor returns the physical range and canonical unit for a sensor type.
func RangeFor(t Type) (Range, error) {
	r, ok := ranges[t]
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", ErrUnknownSensorType, t)
	}
	return r, nil
}

// UnitFor returns the canonical unit for a sensor type.
func UnitFor(t Type) (string, error) {
	r, err := RangeFor(t)
	if err != nil {
		return "", err
	}
	return r.Unit, nil
}
