package domain

import (
	"fmt"
	"math"
)

// Saturation vapour pressure over water as used by the ECMWF IFS:
// es(T) = a1 * exp(a3 * (T - T0) / (T - a4)).
const (
	satA1 = 611.21 // Pa
	satA3 = 17.502
	satA4 = 32.19  // K
	satT0 = 273.16 // K

	// epsilon is Rd/Rv, the ratio of the gas constants of dry air and water vapour.
	epsilon = 287.0597 / 461.5250
)

// SaturationVaporPressure returns the saturation vapour pressure over water in
// Pa for a temperature in K.
func SaturationVaporPressure(temperatureK float64) float64 {
	return satA1 * math.Exp(satA3*(temperatureK-satT0)/(temperatureK-satA4))
}

// SpecificHumidity converts relative humidity (%) at the given temperature (K)
// and pressure (Pa) into specific humidity (kg/kg).
//
// Inputs outside the physical domain are rejected with ErrInvalidMeasurement;
// nothing is clamped.
func SpecificHumidity(rhPercent, temperatureK, pressurePa float64) (float64, error) {
	switch {
	case math.IsNaN(rhPercent) || rhPercent < 0 || rhPercent > 100:
		return 0, fmt.Errorf("%w: relative humidity %g%% outside [0, 100]", ErrInvalidMeasurement, rhPercent)
	case math.IsNaN(pressurePa) || math.IsInf(pressurePa, 0) || pressurePa <= 0:
		return 0, fmt.Errorf("%w: pressure %g Pa must be positive", ErrInvalidMeasurement, pressurePa)
	case math.IsNaN(temperatureK) || math.IsInf(temperatureK, 0) || temperatureK <= satA4:
		return 0, fmt.Errorf("%w: temperature %g K out of range", ErrInvalidMeasurement, temperatureK)
	}

	e := rhPercent / 100 * SaturationVaporPressure(temperatureK)
	if e >= pressurePa {
		return 0, fmt.Errorf("%w: vapour pressure %g Pa exceeds total pressure %g Pa", ErrInvalidMeasurement, e, pressurePa)
	}

	w := epsilon * e / (pressurePa - e)
	return w / (1 + w), nil
}

// MixingRatio converts specific humidity to the humidity mixing ratio (kg/kg).
func MixingRatio(q float64) float64 {
	return q / (1 - q)
}
