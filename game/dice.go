package game

import (
	"math"
)

const (
	DiceMinChance = 0.01
	DiceMaxChance = 98.0
)

// Dice rolls 0.00-100.00 and pays when the roll lands over or under target
type Dice struct {
	HouseEdge float64
}

func (g *Dice) Name() string { return "dice" }

func (g *Dice) FloatCount(Params) int { return 1 }

func (g *Dice) params(p Params) (target float64, over bool, err error) {
	target, ok := p.Float("target")
	if !ok {
		return 0, false, invalid("dice target is required")
	}
	cond, _ := p.Text("condition")
	switch cond {
	case "over":
		over = true
	case "under", "":
	default:
		return 0, false, invalid("dice condition must be over or under")
	}
	chance := winChance(target, over)
	if chance < DiceMinChance || chance > DiceMaxChance {
		return 0, false, invalid("dice win chance %.2f outside [%.2f, %.2f]", chance, DiceMinChance, DiceMaxChance)
	}
	return target, over, nil
}

func winChance(target float64, over bool) float64 {
	if over {
		return 100 - target
	}
	return target
}

func (g *Dice) Validate(p Params) error {
	_, _, err := g.params(p)
	return err
}

// Multiplier pays (100 - edge%) / chance, truncated to 4 places
func (g *Dice) Multiplier(chance float64) float64 {
	return floorTo(100*(1-g.HouseEdge)/chance, 4)
}

func (g *Dice) MaxMultiplier(p Params) float64 {
	target, over, err := g.params(p)
	if err != nil {
		return 0
	}
	return g.Multiplier(winChance(target, over))
}

// Roll maps a float to one of the 10,001 values 0.00..100.00
func Roll(f float64) float64 {
	return math.Floor(f*10001) / 100
}

func (g *Dice) Evaluate(floats []float64, p Params) (Outcome, error) {
	if err := needFloats(g.Name(), floats, 1); err != nil {
		return Outcome{}, err
	}
	target, over, err := g.params(p)
	if err != nil {
		return Outcome{}, err
	}

	roll := Roll(floats[0])
	win := roll < target
	if over {
		win = roll > target
	}

	multiplier := 0.0
	if win {
		multiplier = g.Multiplier(winChance(target, over))
	}

	return Outcome{
		Game: g.Name(),
		Result: map[string]any{
			"roll":      roll,
			"target":    target,
			"condition": condition(over),
		},
		Multiplier: multiplier,
		Win:        win,
	}, nil
}

func condition(over bool) string {
	if over {
		return "over"
	}
	return "under"
}
