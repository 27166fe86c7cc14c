package model

// dist.go - the distribution and scalar-function catalog.
//
// Normal-family distributions are parameterized by precision (inverse
// variance), matching the declarative convention. Log densities return -Inf
// outside a distribution's support or when a hyperparameter is outside its
// own domain (e.g. a non-positive precision), so invalid proposals are
// rejected rather than clamped.

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Dist is one distribution in the catalog.
type Dist struct {
	Name     string
	Arity    int
	Discrete bool

	// LogProb returns the log density (or log mass) of x given the argument
	// values. Returns -Inf outside the support or for invalid arguments.
	LogProb func(args []float64, x float64) float64

	// Rand draws one value from the distribution given the argument values.
	// Fails for arguments outside their domain.
	Rand func(args []float64, src rand.Source) (float64, error)
}

var distCatalog = map[string]*Dist{
	"dnorm": {
		Name:  "dnorm",
		Arity: 2,
		LogProb: func(args []float64, x float64) float64 {
			mean, tau := args[0], args[1]
			if tau <= 0 {
				return math.Inf(-1)
			}
			return distuv.Normal{Mu: mean, Sigma: 1 / math.Sqrt(tau)}.LogProb(x)
		},
		Rand: func(args []float64, src rand.Source) (float64, error) {
			mean, tau := args[0], args[1]
			if tau <= 0 {
				return 0, fmt.Errorf("dnorm: precision must be positive, got %g", tau)
			}
			return distuv.Normal{Mu: mean, Sigma: 1 / math.Sqrt(tau), Src: src}.Rand(), nil
		},
	},
	"dunif": {
		Name:  "dunif",
		Arity: 2,
		LogProb: func(args []float64, x float64) float64 {
			lo, hi := args[0], args[1]
			if hi <= lo {
				return math.Inf(-1)
			}
			return distuv.Uniform{Min: lo, Max: hi}.LogProb(x)
		},
		Rand: func(args []float64, src rand.Source) (float64, error) {
			lo, hi := args[0], args[1]
			if hi <= lo {
				return 0, fmt.Errorf("dunif: upper bound %g not above lower bound %g", hi, lo)
			}
			return distuv.Uniform{Min: lo, Max: hi, Src: src}.Rand(), nil
		},
	},
	"dgamma": {
		Name:  "dgamma",
		Arity: 2,
		LogProb: func(args []float64, x float64) float64 {
			shape, rate := args[0], args[1]
			if shape <= 0 || rate <= 0 || x <= 0 {
				return math.Inf(-1)
			}
			return distuv.Gamma{Alpha: shape, Beta: rate}.LogProb(x)
		},
		Rand: func(args []float64, src rand.Source) (float64, error) {
			shape, rate := args[0], args[1]
			if shape <= 0 || rate <= 0 {
				return 0, fmt.Errorf("dgamma: shape and rate must be positive, got %g, %g", shape, rate)
			}
			return distuv.Gamma{Alpha: shape, Beta: rate, Src: src}.Rand(), nil
		},
	},
	"dbeta": {
		Name:  "dbeta",
		Arity: 2,
		LogProb: func(args []float64, x float64) float64 {
			a, b := args[0], args[1]
			if a <= 0 || b <= 0 || x <= 0 || x >= 1 {
				return math.Inf(-1)
			}
			return distuv.Beta{Alpha: a, Beta: b}.LogProb(x)
		},
		Rand: func(args []float64, src rand.Source) (float64, error) {
			a, b := args[0], args[1]
			if a <= 0 || b <= 0 {
				return 0, fmt.Errorf("dbeta: both shapes must be positive, got %g, %g", a, b)
			}
			return distuv.Beta{Alpha: a, Beta: b, Src: src}.Rand(), nil
		},
	},
	"dexp": {
		Name:  "dexp",
		Arity: 1,
		LogProb: func(args []float64, x float64) float64 {
			rate := args[0]
			if rate <= 0 || x < 0 {
				return math.Inf(-1)
			}
			return distuv.Exponential{Rate: rate}.LogProb(x)
		},
		Rand: func(args []float64, src rand.Source) (float64, error) {
			rate := args[0]
			if rate <= 0 {
				return 0, fmt.Errorf("dexp: rate must be positive, got %g", rate)
			}
			return distuv.Exponential{Rate: rate, Src: src}.Rand(), nil
		},
	},
	"dpois": {
		Name:     "dpois",
		Arity:    1,
		Discrete: true,
		LogProb: func(args []float64, x float64) float64 {
			lambda := args[0]
			if lambda <= 0 || x < 0 || x != math.Trunc(x) {
				return math.Inf(-1)
			}
			return distuv.Poisson{Lambda: lambda}.LogProb(x)
		},
		Rand: func(args []float64, src rand.Source) (float64, error) {
			lambda := args[0]
			if lambda <= 0 {
				return 0, fmt.Errorf("dpois: rate must be positive, got %g", lambda)
			}
			return distuv.Poisson{Lambda: lambda, Src: src}.Rand(), nil
		},
	},
	"dbern": {
		Name:     "dbern",
		Arity:    1,
		Discrete: true,
		LogProb: func(args []float64, x float64) float64 {
			p := args[0]
			if p < 0 || p > 1 || (x != 0 && x != 1) {
				return math.Inf(-1)
			}
			return distuv.Bernoulli{P: p}.LogProb(x)
		},
		Rand: func(args []float64, src rand.Source) (float64, error) {
			p := args[0]
			if p < 0 || p > 1 {
				return 0, fmt.Errorf("dbern: probability must be in [0,1], got %g", p)
			}
			return distuv.Bernoulli{P: p, Src: src}.Rand(), nil
		},
	},
}

// LookupDist returns the distribution with the given name.
func LookupDist(name string) (*Dist, bool) {
	d, ok := distCatalog[name]
	return d, ok
}

// Distributions returns the names of all supported distributions.
func Distributions() []string {
	names := make([]string, 0, len(distCatalog))
	for name := range distCatalog {
		names = append(names, name)
	}
	return names
}

// scalarFunc is a built-in scalar function usable in expressions.
type scalarFunc struct {
	arity int // -1 = variadic
	eval  func(args []float64) float64
}

var funcCatalog = map[string]scalarFunc{
	"sqrt": {1, func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"log":  {1, func(a []float64) float64 { return math.Log(a[0]) }},
	"exp":  {1, func(a []float64) float64 { return math.Exp(a[0]) }},
	"abs":  {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"pow":  {2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"min":  {2, func(a []float64) float64 { return math.Min(a[0], a[1]) }},
	"max":  {2, func(a []float64) float64 { return math.Max(a[0], a[1]) }},
	"step": {1, func(a []float64) float64 {
		if a[0] >= 0 {
			return 1
		}
		return 0
	}},
	"logit":  {1, func(a []float64) float64 { return math.Log(a[0] / (1 - a[0])) }},
	"ilogit": {1, func(a []float64) float64 { return 1 / (1 + math.Exp(-a[0])) }},
}

// IsFunction reports whether name is a built-in scalar function.
func IsFunction(name string) bool {
	_, ok := funcCatalog[name]
	return ok
}

// FunctionArity returns the argument count a function expects, or -1 for
// variadic functions. Unknown functions return 0.
func FunctionArity(name string) int {
	f, ok := funcCatalog[name]
	if !ok {
		return 0
	}
	return f.arity
}

func evalFunction(name string, args []float64) float64 {
	return funcCatalog[name].eval(args)
}
