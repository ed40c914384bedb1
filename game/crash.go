package game

import (
	"math"
)

// Crash is the single-player crash game: the player sets an auto cashout
// and wins it if the round's crash point reaches it. Multiplayer rounds use
// CrashPoint directly.
type Crash struct {
	HouseEdge float64
}

func (g *Crash) Name() string { return "crash" }

func (g *Crash) FloatCount(Params) int { return 1 }

func (g *Crash) Validate(p Params) error {
	_, err := targetParam(p, "cashout")
	return err
}

func (g *Crash) MaxMultiplier(p Params) float64 {
	cashout, err := targetParam(p, "cashout")
	if err != nil {
		return 0
	}
	return cashout
}

// CrashPoint maps a float to a crash multiplier. houseEdge of all rounds
// crash instantly at 1.00; the rest follow (1 - edge) / (1 - f).
func CrashPoint(f, houseEdge float64) float64 {
	if f < houseEdge {
		return 1.0
	}
	point := floorTo((1-houseEdge)/(1-f), 2)
	return math.Min(math.Max(point, 1.0), MaxTargetMultiplier)
}

func (g *Crash) Evaluate(floats []float64, p Params) (Outcome, error) {
	if err := needFloats(g.Name(), floats, 1); err != nil {
		return Outcome{}, err
	}
	cashout, err := targetParam(p, "cashout")
	if err != nil {
		return Outcome{}, err
	}

	point := CrashPoint(floats[0], g.HouseEdge)
	win := point >= cashout
	multiplier := 0.0
	if win {
		multiplier = cashout
	}

	return Outcome{
		Game: g.Name(),
		Result: map[string]any{
			"crashPoint": point,
			"cashout":    cashout,
		},
		Multiplier: multiplier,
		Win:        win,
	}, nil
}
