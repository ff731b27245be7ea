// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package meteo derives meteorological quantities from temperature and
// relative humidity pairs. All functions are pure; sampling is the caller's
// problem.
package meteo

import (
	"math"

	"periph.io/x/conn/v3/physic"
)

// Magnus/Tetens coefficients, valid roughly over 0..60°C.
const (
	magnusA = 17.62
	magnusB = 243.12
)

// Fahrenheit converts a temperature from °C to °F.
func Fahrenheit(tC float64) float64 {
	return tC*9/5 + 32
}

func fromFahrenheit(tF float64) float64 {
	return (tF - 32) * 5 / 9
}

// DewPointC returns the dew point in °C for a temperature in °C and a
// relative humidity in percent, using the Magnus/Tetens approximation.
// Inputs outside the approximation's validity range are not rejected; the
// result is then mathematically defined but physically meaningless.
func DewPointC(tC, rh float64) float64 {
	gamma := magnusA*tC/(magnusB+tC) + math.Log(rh/100)
	return magnusB * gamma / (magnusA - gamma)
}

// HeatIndexC returns the NOAA heat index in °C for a temperature in °C and a
// relative humidity in percent.
//
// Below 80°F the Steadman simplified formula applies. At or above 80°F the
// full Rothfusz regression is used, with the NOAA low-humidity and
// high-humidity boundary corrections.
func HeatIndexC(tC, rh float64) float64 {
	tF := Fahrenheit(tC)
	if tF < 80 {
		return fromFahrenheit(0.5 * (tF + 61 + (tF-68)*1.2 + rh*0.094))
	}

	hi := -42.379 +
		2.04901523*tF +
		10.14333127*rh +
		-0.22475541*tF*rh +
		-0.00683783*tF*tF +
		-0.05481717*rh*rh +
		0.00122874*tF*tF*rh +
		0.00085282*tF*rh*rh +
		-0.00000199*tF*tF*rh*rh

	if rh < 13 && tF >= 80 && tF <= 112 {
		hi -= (13 - rh) / 4 * math.Sqrt((17-math.Abs(tF-95))/17)
	} else if rh > 85 && tF >= 80 && tF <= 87 {
		hi += (rh - 85) / 10 * ((87 - tF) / 5)
	}
	return fromFahrenheit(hi)
}

// DewPoint is DewPointC lifted onto physic types.
func DewPoint(t physic.Temperature, h physic.RelativeHumidity) physic.Temperature {
	dp := DewPointC(t.Celsius(), float64(h)/float64(physic.PercentRH))
	return physic.Temperature(dp*float64(physic.Celsius)) + physic.ZeroCelsius
}

// HeatIndex is HeatIndexC lifted onto physic types.
func HeatIndex(t physic.Temperature, h physic.RelativeHumidity) physic.Temperature {
	hi := HeatIndexC(t.Celsius(), float64(h)/float64(physic.PercentRH))
	return physic.Temperature(hi*float64(physic.Celsius)) + physic.ZeroCelsius
}
