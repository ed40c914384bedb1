package game

const MinesTiles = 25

// Mines hides mines on a 5x5 board. The player reveals picks; any mine
// loses, otherwise the hypergeometric multiplier for the number of safe
// reveals is paid.
type Mines struct {
	HouseEdge float64
}

func (g *Mines) Name() string { return "mines" }

func (g *Mines) FloatCount(p Params) int {
	mines, _ := p.Int("mines")
	return mines
}

func (g *Mines) params(p Params) (mines int, picks []int, err error) {
	mines, ok := p.Int("mines")
	if !ok || mines < 1 || mines > MinesTiles-1 {
		return 0, nil, invalid("mines must be in [1, %d]", MinesTiles-1)
	}
	picks, ok = p.Ints("picks")
	if !ok || len(picks) == 0 {
		return 0, nil, invalid("picks are required")
	}
	if len(picks) > MinesTiles-mines {
		return 0, nil, invalid("at most %d picks with %d mines", MinesTiles-mines, mines)
	}
	if !distinctInRange(picks, 0, MinesTiles-1) {
		return 0, nil, invalid("picks must be distinct tiles in [0, %d]", MinesTiles-1)
	}
	return mines, picks, nil
}

func (g *Mines) Validate(p Params) error {
	_, _, err := g.params(p)
	return err
}

func (g *Mines) MaxMultiplier(p Params) float64 {
	mines, picks, err := g.params(p)
	if err != nil {
		return 0
	}
	return MinesMultiplier(mines, len(picks), g.HouseEdge)
}

// MinesMultiplier is (1 - edge) * C(25, k) / C(25 - mines, k): the inverse
// probability of k safe reveals in a row
func MinesMultiplier(mines, safe int, houseEdge float64) float64 {
	if mines < 1 || mines >= MinesTiles || safe < 0 || safe > MinesTiles-mines {
		return 0
	}
	m := 1.0
	for i := 0; i < safe; i++ {
		m *= float64(MinesTiles-i) / float64(MinesTiles-mines-i)
	}
	return floorTo((1-houseEdge)*m, 4)
}

// MinesTable returns the multiplier after 1..25-mines safe reveals
func MinesTable(mines int, houseEdge float64) []float64 {
	if mines < 1 || mines >= MinesTiles {
		return nil
	}
	table := make([]float64, 0, MinesTiles-mines)
	for k := 1; k <= MinesTiles-mines; k++ {
		table = append(table, MinesMultiplier(mines, k, houseEdge))
	}
	return table
}

// MineLayout places mines on tiles 0..24 from the fair floats
func MineLayout(floats []float64) []int {
	return sortedCopy(pickFrom(seq(0, MinesTiles-1), floats))
}

func (g *Mines) Evaluate(floats []float64, p Params) (Outcome, error) {
	mines, picks, err := g.params(p)
	if err != nil {
		return Outcome{}, err
	}
	if err := needFloats(g.Name(), floats, mines); err != nil {
		return Outcome{}, err
	}

	layout := MineLayout(floats[:mines])
	isMine := make(map[int]bool, len(layout))
	for _, tile := range layout {
		isMine[tile] = true
	}

	safe := 0
	hitMine := -1
	for _, tile := range picks {
		if isMine[tile] {
			hitMine = tile
			break
		}
		safe++
	}

	win := hitMine < 0
	multiplier := 0.0
	if win {
		multiplier = MinesMultiplier(mines, safe, g.HouseEdge)
	}

	result := map[string]any{
		"mines":       layout,
		"picks":       picks,
		"safeReveals": safe,
	}
	if !win {
		result["hitMine"] = hitMine
	}

	return Outcome{
		Game:       g.Name(),
		Result:     result,
		Multiplier: multiplier,
		Win:        win,
	}, nil
}
