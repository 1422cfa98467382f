package engine

import (
	"fmt"
	"io"
	"math"
	"strconv"
)

// Builtin is a host function an extern declaration can resolve to.
type Builtin struct {
	Arity int
	Fn    func(w io.Writer, args []float64) float64
}

func unary(f func(float64) float64) Builtin {
	return Builtin{
		Arity: 1,
		Fn: func(_ io.Writer, args []float64) float64 {
			return f(args[0])
		},
	}
}

func binary(f func(float64, float64) float64) Builtin {
	return Builtin{
		Arity: 2,
		Fn: func(_ io.Writer, args []float64) float64 {
			return f(args[0], args[1])
		},
	}
}

// DefaultBuiltins returns the libm subset and the two output helpers
// putchard and printd.
func DefaultBuiltins() map[string]Builtin {
	return map[string]Builtin{
		"sin":   unary(math.Sin),
		"cos":   unary(math.Cos),
		"tan":   unary(math.Tan),
		"atan":  unary(math.Atan),
		"sqrt":  unary(math.Sqrt),
		"exp":   unary(math.Exp),
		"log":   unary(math.Log),
		"fabs":  unary(math.Abs),
		"floor": unary(math.Floor),
		"ceil":  unary(math.Ceil),
		"pow":   binary(math.Pow),
		"fmod":  binary(math.Mod),

		"putchard": {
			Arity: 1,
			Fn: func(w io.Writer, args []float64) float64 {
				fmt.Fprintf(w, "%c", rune(args[0]))
				return 0
			},
		},
		"printd": {
			Arity: 1,
			Fn: func(w io.Writer, args []float64) float64 {
				fmt.Fprintf(w, "%s\n", FormatDouble(args[0]))
				return 0
			},
		},
	}
}

// FormatDouble formats x the way C's printf("%f") does, including the
// spelling of infinities and NaN.
func FormatDouble(x float64) string {
	switch {
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	case math.IsNaN(x) && math.Signbit(x):
		return "-nan"
	case math.IsNaN(x):
		return "nan"
	}

	return strconv.FormatFloat(x, 'f', 6, 64)
}
