package game

// Coinflip pays 2x less the house edge on the called side
type Coinflip struct {
	HouseEdge float64
}

func (g *Coinflip) Name() string { return "coinflip" }

func (g *Coinflip) FloatCount(Params) int { return 1 }

func (g *Coinflip) Validate(p Params) error {
	side, _ := p.Text("side")
	if side != "heads" && side != "tails" {
		return invalid("coinflip side must be heads or tails")
	}
	return nil
}

func (g *Coinflip) MaxMultiplier(Params) float64 {
	return floorTo(2*(1-g.HouseEdge), 4)
}

func (g *Coinflip) Evaluate(floats []float64, p Params) (Outcome, error) {
	if err := needFloats(g.Name(), floats, 1); err != nil {
		return Outcome{}, err
	}
	if err := g.Validate(p); err != nil {
		return Outcome{}, err
	}
	side, _ := p.Text("side")

	result := "tails"
	if floats[0] < 0.5 {
		result = "heads"
	}
	win := result == side
	multiplier := 0.0
	if win {
		multiplier = g.MaxMultiplier(p)
	}

	return Outcome{
		Game: g.Name(),
		Result: map[string]any{
			"side":   side,
			"result": result,
		},
		Multiplier: multiplier,
		Win:        win,
	}, nil
}
