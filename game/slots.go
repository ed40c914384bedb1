package game

const (
	SlotsReels   = 3
	cherrySymbol = "cherry"
)

// Slots spins three reels over one shared strip
type Slots struct {
	Table SlotsTable
}

func (g *Slots) Name() string { return "slots" }

func (g *Slots) FloatCount(Params) int { return SlotsReels }

func (g *Slots) Validate(Params) error { return nil }

func (g *Slots) MaxMultiplier(Params) float64 {
	m := 0.0
	for _, v := range g.Table.Three {
		if v > m {
			m = v
		}
	}
	for _, v := range g.Table.Cherries {
		if v > m {
			m = v
		}
	}
	return m
}

// Pay returns the multiplier for a reel line
func (g *Slots) Pay(reels []string) float64 {
	three := true
	cherries := 0
	for _, s := range reels {
		if s != reels[0] {
			three = false
		}
		if s == cherrySymbol {
			cherries++
		}
	}
	if three {
		return g.Table.Three[reels[0]]
	}
	return g.Table.Cherries[cherries]
}

func (g *Slots) Evaluate(floats []float64, p Params) (Outcome, error) {
	if err := needFloats(g.Name(), floats, SlotsReels); err != nil {
		return Outcome{}, err
	}

	strip := g.Table.Strip
	reels := make([]string, SlotsReels)
	stops := make([]int, SlotsReels)
	for i := range reels {
		stops[i] = int(floats[i] * float64(len(strip)))
		reels[i] = strip[stops[i]]
	}

	multiplier := g.Pay(reels)
	return Outcome{
		Game: g.Name(),
		Result: map[string]any{
			"reels": reels,
			"stops": stops,
		},
		Multiplier: multiplier,
		Win:        multiplier > 1,
	}, nil
}
