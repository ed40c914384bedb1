package game

import (
	"math"
	"math/bits"
)

// multiplierScale is the fixed-point precision multipliers are settled at.
// Every game multiplier has at most 4 decimals.
const multiplierScale = 1e8

// Payout is floor(bet * multiplier) in minor units. The multiplier is
// converted to fixed point first so decimals float64 cannot hold exactly
// (1.15, 2.01) are not rounded down a unit.
func Payout(bet int64, multiplier float64) int64 {
	if bet <= 0 || multiplier <= 0 || math.IsNaN(multiplier) {
		return 0
	}
	scaled := math.Round(multiplier * multiplierScale)
	if scaled >= math.MaxInt64 {
		// Beyond fixed point range the float product is already integral
		p := math.Floor(float64(bet) * multiplier)
		if p >= math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(p)
	}

	hi, lo := bits.Mul64(uint64(bet), uint64(scaled))
	if hi >= multiplierScale {
		return math.MaxInt64
	}
	q, _ := bits.Div64(hi, lo, multiplierScale)
	if q > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q)
}

// MaxPayout is the largest amount a bet with these params can pay
func MaxPayout(g Game, bet int64, p Params) int64 {
	return Payout(bet, g.MaxMultiplier(p))
}

// RoundDown truncates v to the given decimal places
func RoundDown(v float64, places int) float64 {
	return floorTo(v, places)
}

// Sample plays nonces [start, start+count) and returns each multiplier
func (r *Registry) Sample(name string, seeds Seeds, p Params, start uint64, count int) ([]float64, error) {
	g, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(p); err != nil {
		return nil, err
	}
	n := g.FloatCount(p)
	out := make([]float64, count)
	for i := range out {
		outcome, err := g.Evaluate(Floats(seeds, start+uint64(i), n), p)
		if err != nil {
			return nil, err
		}
		out[i] = outcome.Multiplier
	}
	return out, nil
}

// RTP is the mean multiplier over count rounds
func (r *Registry) RTP(name string, seeds Seeds, p Params, count int) (float64, error) {
	if count <= 0 {
		return 0, invalid("round count must be positive")
	}
	multipliers, err := r.Sample(name, seeds, p, 0, count)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, m := range multipliers {
		sum += m
	}
	return sum / float64(count), nil
}

// Verify recomputes an outcome from revealed seeds. It is Play under the
// name players know it by.
func (r *Registry) Verify(name string, seeds Seeds, nonce uint64, p Params) (Outcome, error) {
	return r.Play(name, seeds, nonce, p)
}
