package game

// Wheel spins to one of 10 or 20 segments with a fixed multiplier each
type Wheel struct {
	Tables map[string]map[int][]float64
}

func (g *Wheel) Name() string { return "wheel" }

func (g *Wheel) FloatCount(Params) int { return 1 }

func (g *Wheel) params(p Params) (int, string, []float64, error) {
	segments, ok := p.Int("segments")
	if !ok {
		segments = 10
	}
	risk, _ := p.Text("risk")
	if risk == "" {
		risk = "low"
	}
	row, err := tableRow(g.Tables, g.Name(), risk, segments)
	if err != nil {
		return 0, "", nil, err
	}
	return segments, risk, row, nil
}

func (g *Wheel) Validate(p Params) error {
	_, _, _, err := g.params(p)
	return err
}

func (g *Wheel) MaxMultiplier(p Params) float64 {
	_, _, row, err := g.params(p)
	if err != nil {
		return 0
	}
	return maxOf(row)
}

func (g *Wheel) Evaluate(floats []float64, p Params) (Outcome, error) {
	if err := needFloats(g.Name(), floats, 1); err != nil {
		return Outcome{}, err
	}
	segments, risk, row, err := g.params(p)
	if err != nil {
		return Outcome{}, err
	}

	segment := int(floats[0] * float64(segments))
	multiplier := row[segment]
	return Outcome{
		Game: g.Name(),
		Result: map[string]any{
			"segment":  segment,
			"segments": segments,
			"risk":     risk,
		},
		Multiplier: multiplier,
		Win:        multiplier > 1,
	}, nil
}
