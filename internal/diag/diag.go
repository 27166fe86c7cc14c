// Package diag computes convergence diagnostics and marginal posterior
// summaries over a draw bundle: the Gelman-Rubin potential scale reduction
// factor, autocorrelation-based effective sample size, and per-parameter
// summary statistics.
package diag

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/calder-labs/kiln/internal/draws"
)

// RHatThreshold is the conventional acceptance threshold for the potential
// scale reduction factor. Values above it signal non-convergence; that is a
// statistical-quality signal, not a program error.
const RHatThreshold = 1.1

// GelmanRubin computes the potential scale reduction factor from two or more
// chains of equal length. At convergence the value approaches 1.0.
func GelmanRubin(chains [][]float64) (float64, error) {
	m := len(chains)
	if m < 2 {
		return 0, fmt.Errorf("gelman-rubin requires at least 2 chains, got %d", m)
	}
	n := len(chains[0])
	if n < 2 {
		return 0, fmt.Errorf("gelman-rubin requires at least 2 draws per chain, got %d", n)
	}
	for _, c := range chains {
		if len(c) != n {
			return 0, fmt.Errorf("chains have unequal lengths")
		}
	}

	means := make([]float64, m)
	variances := make([]float64, m)
	for i, c := range chains {
		means[i], variances[i] = stat.MeanVariance(c, nil)
	}

	// W: mean within-chain variance. B/n: variance of the chain means.
	w := stat.Mean(variances, nil)
	bOverN := stat.Variance(means, nil)
	if w == 0 {
		return 1, nil
	}

	nf := float64(n)
	varPlus := (nf-1)/nf*w + bOverN
	return math.Sqrt(varPlus / w), nil
}

// ESS estimates the effective sample size of the retained draws across all
// chains, using chain-averaged autocorrelations truncated at the first
// non-positive pair sum (Geyer's initial positive sequence).
func ESS(chains [][]float64) float64 {
	m := len(chains)
	if m == 0 {
		return 0
	}
	n := len(chains[0])
	if n < 2 {
		return float64(m * n)
	}

	maxLag := n / 2
	acSum := 0.0
	for lag := 1; lag+1 <= maxLag; lag += 2 {
		pair := avgAutocorr(chains, lag) + avgAutocorr(chains, lag+1)
		if pair <= 0 {
			break
		}
		acSum += pair
	}

	ess := float64(m*n) / (1 + 2*acSum)
	if ess > float64(m*n) {
		ess = float64(m * n)
	}
	return ess
}

// avgAutocorr averages the lag-k autocorrelation over chains.
func avgAutocorr(chains [][]float64, lag int) float64 {
	total := 0.0
	for _, c := range chains {
		total += autocorr(c, lag)
	}
	return total / float64(len(chains))
}

func autocorr(x []float64, lag int) float64 {
	n := len(x)
	if lag >= n {
		return 0
	}
	mean, variance := stat.MeanVariance(x, nil)
	if variance == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n-lag; i++ {
		sum += (x[i] - mean) * (x[i+lag] - mean)
	}
	return sum / (float64(n-1) * variance)
}

// ParamSummary is the marginal posterior summary for one retained parameter.
type ParamSummary struct {
	Name   string
	Mean   float64
	SD     float64
	MCSE   float64
	Q2_5   float64
	Median float64
	Q97_5  float64
	ESS    float64
	RHat   float64 // NaN for single-chain runs
}

// Converged reports whether the parameter's R-hat is under the accepted
// threshold. Single-chain runs report true (no between-chain evidence).
func (s ParamSummary) Converged() bool {
	return math.IsNaN(s.RHat) || s.RHat < RHatThreshold
}

// Summarize computes per-parameter summaries over a bundle: marginal
// statistics from the flat posterior table, convergence statistics from the
// chain-indexed view.
func Summarize(b *draws.Bundle) ([]ParamSummary, error) {
	table := b.Flatten()
	summaries := make([]ParamSummary, 0, len(table.Columns))

	for _, name := range table.Columns {
		col, err := table.Column(name)
		if err != nil {
			return nil, err
		}
		chains, err := b.ChainView(name)
		if err != nil {
			return nil, err
		}

		mean, variance := stat.MeanVariance(col, nil)
		sd := math.Sqrt(variance)

		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)

		ess := ESS(chains)
		rhat := math.NaN()
		if b.Chains() >= 2 {
			rhat, err = GelmanRubin(chains)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", name, err)
			}
		}

		mcse := math.NaN()
		if ess > 0 {
			mcse = sd / math.Sqrt(ess)
		}

		summaries = append(summaries, ParamSummary{
			Name:   name,
			Mean:   mean,
			SD:     sd,
			MCSE:   mcse,
			Q2_5:   stat.Quantile(0.025, stat.Empirical, sorted, nil),
			Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
			Q97_5:  stat.Quantile(0.975, stat.Empirical, sorted, nil),
			ESS:    ess,
			RHat:   rhat,
		})
	}
	return summaries, nil
}
