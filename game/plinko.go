package game

const (
	PlinkoMinRows = 8
	PlinkoMaxRows = 16
)

// Plinko drops a ball through rows of pegs; each peg sends it left or right
type Plinko struct {
	Tables map[string]map[int][]float64
}

func (g *Plinko) Name() string { return "plinko" }

func (g *Plinko) FloatCount(p Params) int {
	rows, _ := p.Int("rows")
	return rows
}

func (g *Plinko) params(p Params) (int, string, []float64, error) {
	rows, ok := p.Int("rows")
	if !ok || rows < PlinkoMinRows || rows > PlinkoMaxRows {
		return 0, "", nil, invalid("plinko rows must be in [%d, %d]", PlinkoMinRows, PlinkoMaxRows)
	}
	risk, _ := p.Text("risk")
	if risk == "" {
		risk = "low"
	}
	row, err := tableRow(g.Tables, g.Name(), risk, rows)
	if err != nil {
		return 0, "", nil, err
	}
	return rows, risk, row, nil
}

func (g *Plinko) Validate(p Params) error {
	_, _, _, err := g.params(p)
	return err
}

func (g *Plinko) MaxMultiplier(p Params) float64 {
	_, _, row, err := g.params(p)
	if err != nil {
		return 0
	}
	return maxOf(row)
}

func (g *Plinko) Evaluate(floats []float64, p Params) (Outcome, error) {
	rows, risk, row, err := g.params(p)
	if err != nil {
		return Outcome{}, err
	}
	if err := needFloats(g.Name(), floats, rows); err != nil {
		return Outcome{}, err
	}

	path := make([]string, rows)
	bucket := 0
	for i, f := range floats[:rows] {
		if f >= 0.5 {
			path[i] = "R"
			bucket++
		} else {
			path[i] = "L"
		}
	}

	multiplier := row[bucket]
	return Outcome{
		Game: g.Name(),
		Result: map[string]any{
			"rows":   rows,
			"risk":   risk,
			"path":   path,
			"bucket": bucket,
		},
		Multiplier: multiplier,
		Win:        multiplier > 1,
	}, nil
}
