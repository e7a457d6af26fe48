// Package thermo converts raw codes of the on-die temperature sensor into
// Celsius and Fahrenheit using the uncalibrated datasheet equation
//
//	C = 147.5 - (75 * 3.3 * raw) / 4096
//	F = (C * 9 + 160) / 5
//
// Multiplications happen before divisions and integer results truncate
// toward zero. The equation is only defined for 12-bit codes (0-4095).
package thermo

import (
	"fmt"

	"github.com/itohio/gotemp/pkg/adc"
)

// MaxRaw is the largest code Convert accepts.
const MaxRaw = adc.MaxRaw

const (
	// fullScale is the number of codes of a 12-bit converter.
	fullScale = 4096

	// Tenths keep 147.5 and 75*3.3 integral.
	offsetTenths = 1475
	slopeTenths  = 75 * 33
)

// Temperature is one converted reading, truncated to whole degrees.
type Temperature struct {
	Celsius    int32
	Fahrenheit int32
}

func (t Temperature) String() string {
	return fmt.Sprintf("%d°C/%d°F", t.Celsius, t.Fahrenheit)
}

// Converter maps a raw code to a Temperature.
type Converter func(raw adc.RawSample) Temperature

// Arithmetic selects how a Converter evaluates the equation.
type Arithmetic string

const (
	ArithmeticFixed Arithmetic = "fixed"
	ArithmeticFloat Arithmetic = "float"
)

// New returns the Converter for the given arithmetic. Unknown values fall
// back to fixed point.
func New(a Arithmetic) Converter {
	if a == ArithmeticFloat {
		return ConvertFloat
	}
	return Convert
}

// Valid reports whether raw lies in the converter's domain.
func Valid(raw adc.RawSample) bool {
	return raw <= MaxRaw
}

// Convert evaluates the equation exactly in scaled integers and truncates once.
func Convert(raw adc.RawSample) Temperature {
	num := int64(offsetTenths)*fullScale - int64(slopeTenths)*int64(raw)
	c := int32(num / (10 * fullScale))
	return Temperature{Celsius: c, Fahrenheit: fahrenheit(c)}
}

func fahrenheit(c int32) int32 {
	return (c*9 + 160) / 5
}

// ConvertFloat evaluates the equation in float32, for targets with an FPU.
// Every intermediate is exactly representable for 12-bit codes, so it agrees
// with Convert on the whole domain.
func ConvertFloat(raw adc.RawSample) Temperature {
	c := int32(celsius32(raw))
	f := int32((float32(c)*9 + 160) / 5)
	return Temperature{Celsius: c, Fahrenheit: f}
}

// Exact returns the untruncated temperatures.
func Exact(raw adc.RawSample) (celsius, fahrenheit float32) {
	celsius = celsius32(raw)
	fahrenheit = (celsius*9 + 160) / 5
	return celsius, fahrenheit
}

func celsius32(raw adc.RawSample) float32 {
	const slope float32 = 75 * 3.3
	return 147.5 - (slope*float32(raw))/fullScale
}
