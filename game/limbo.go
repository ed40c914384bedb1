package game

import (
	"math"
)

const (
	MinTargetMultiplier = 1.01
	MaxTargetMultiplier = 1000000.0
)

// Limbo draws a result multiplier and pays the target when the result
// reaches it
type Limbo struct {
	HouseEdge float64
}

func (g *Limbo) Name() string { return "limbo" }

func (g *Limbo) FloatCount(Params) int { return 1 }

func targetParam(p Params, key string) (float64, error) {
	target, ok := p.Float(key)
	if !ok {
		return 0, invalid("%s is required", key)
	}
	if target < MinTargetMultiplier || target > MaxTargetMultiplier {
		return 0, invalid("%s must be in [%.2f, %.0f]", key, MinTargetMultiplier, MaxTargetMultiplier)
	}
	return floorTo(target, 2), nil
}

func (g *Limbo) Validate(p Params) error {
	_, err := targetParam(p, "target")
	return err
}

func (g *Limbo) MaxMultiplier(p Params) float64 {
	target, err := targetParam(p, "target")
	if err != nil {
		return 0
	}
	return target
}

// LimboResult is (1 - edge) / f truncated to 2 places, at least 1.00 and
// at most the target cap
func LimboResult(f, houseEdge float64) float64 {
	if f <= 0 {
		return MaxTargetMultiplier
	}
	result := floorTo(1e8/(f*1e8)*(1-houseEdge), 2)
	return math.Min(math.Max(result, 1.0), MaxTargetMultiplier)
}

func (g *Limbo) Evaluate(floats []float64, p Params) (Outcome, error) {
	if err := needFloats(g.Name(), floats, 1); err != nil {
		return Outcome{}, err
	}
	target, err := targetParam(p, "target")
	if err != nil {
		return Outcome{}, err
	}

	result := LimboResult(floats[0], g.HouseEdge)
	win := result >= target
	multiplier := 0.0
	if win {
		multiplier = target
	}

	return Outcome{
		Game: g.Name(),
		Result: map[string]any{
			"result": result,
			"target": target,
		},
		Multiplier: multiplier,
		Win:        win,
	}, nil
}
