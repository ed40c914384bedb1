package game

const (
	KenoNumbers  = 40
	KenoDraws    = 10
	KenoMaxPicks = 10
)

// Keno draws 10 of 40 numbers and pays by how many of the player's picks hit
type Keno struct {
	Tables map[string]map[int][]float64
}

func (g *Keno) Name() string { return "keno" }

func (g *Keno) FloatCount(Params) int { return KenoDraws }

func (g *Keno) params(p Params) ([]int, string, []float64, error) {
	picks, ok := p.Ints("picks")
	if !ok || len(picks) < 1 || len(picks) > KenoMaxPicks {
		return nil, "", nil, invalid("keno requires 1-%d picks", KenoMaxPicks)
	}
	if !distinctInRange(picks, 1, KenoNumbers) {
		return nil, "", nil, invalid("keno picks must be distinct numbers in [1, %d]", KenoNumbers)
	}
	risk, _ := p.Text("risk")
	if risk == "" {
		risk = "classic"
	}
	row, err := tableRow(g.Tables, g.Name(), risk, len(picks))
	if err != nil {
		return nil, "", nil, err
	}
	return picks, risk, row, nil
}

func (g *Keno) Validate(p Params) error {
	_, _, _, err := g.params(p)
	return err
}

func (g *Keno) MaxMultiplier(p Params) float64 {
	_, _, row, err := g.params(p)
	if err != nil {
		return 0
	}
	return maxOf(row)
}

// KenoDraw returns the 10 drawn numbers (1-40) in draw order
func KenoDraw(floats []float64) []int {
	return pickFrom(seq(1, KenoNumbers), floats[:KenoDraws])
}

func (g *Keno) Evaluate(floats []float64, p Params) (Outcome, error) {
	picks, risk, row, err := g.params(p)
	if err != nil {
		return Outcome{}, err
	}
	if err := needFloats(g.Name(), floats, KenoDraws); err != nil {
		return Outcome{}, err
	}

	draws := KenoDraw(floats)
	drawn := make(map[int]bool, len(draws))
	for _, n := range draws {
		drawn[n] = true
	}
	hits := make([]int, 0, len(picks))
	for _, n := range picks {
		if drawn[n] {
			hits = append(hits, n)
		}
	}

	multiplier := row[len(hits)]
	return Outcome{
		Game: g.Name(),
		Result: map[string]any{
			"draws": draws,
			"picks": picks,
			"hits":  sortedCopy(hits),
			"risk":  risk,
		},
		Multiplier: multiplier,
		Win:        multiplier > 1,
	}, nil
}
