package game

const RoulettePockets = 37

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// Roulette is single-zero European roulette with one bet per spin
type Roulette struct{}

func (g *Roulette) Name() string { return "roulette" }

func (g *Roulette) FloatCount(Params) int { return 1 }

type rouletteBet struct {
	kind  string
	value int
}

func (g *Roulette) params(p Params) (rouletteBet, error) {
	kind, ok := p.Text("bet")
	if !ok {
		return rouletteBet{}, invalid("roulette bet is required")
	}
	bet := rouletteBet{kind: kind}
	switch kind {
	case "straight":
		n, ok := p.Int("number")
		if !ok || n < 0 || n >= RoulettePockets {
			return rouletteBet{}, invalid("straight bet number must be in [0, 36]")
		}
		bet.value = n
	case "dozen", "column":
		n, ok := p.Int("number")
		if !ok || n < 1 || n > 3 {
			return rouletteBet{}, invalid("%s bet number must be 1, 2 or 3", kind)
		}
		bet.value = n
	case "red", "black", "odd", "even", "low", "high":
	default:
		return rouletteBet{}, invalid("unknown roulette bet: %s", kind)
	}
	return bet, nil
}

func (g *Roulette) Validate(p Params) error {
	_, err := g.params(p)
	return err
}

// payout multiplier including the returned stake
func (b rouletteBet) multiplier() float64 {
	switch b.kind {
	case "straight":
		return 36
	case "dozen", "column":
		return 3
	}
	return 2
}

func (b rouletteBet) wins(n int) bool {
	if b.kind == "straight" {
		return n == b.value
	}
	if n == 0 {
		return false
	}
	switch b.kind {
	case "red":
		return redNumbers[n]
	case "black":
		return !redNumbers[n]
	case "odd":
		return n%2 == 1
	case "even":
		return n%2 == 0
	case "low":
		return n <= 18
	case "high":
		return n >= 19
	case "dozen":
		return (n-1)/12+1 == b.value
	case "column":
		return (n-1)%3+1 == b.value
	}
	return false
}

func (g *Roulette) MaxMultiplier(p Params) float64 {
	bet, err := g.params(p)
	if err != nil {
		return 0
	}
	return bet.multiplier()
}

// RouletteColor names the pocket color
func RouletteColor(n int) string {
	switch {
	case n == 0:
		return "green"
	case redNumbers[n]:
		return "red"
	}
	return "black"
}

func (g *Roulette) Evaluate(floats []float64, p Params) (Outcome, error) {
	if err := needFloats(g.Name(), floats, 1); err != nil {
		return Outcome{}, err
	}
	bet, err := g.params(p)
	if err != nil {
		return Outcome{}, err
	}

	n := int(floats[0] * RoulettePockets)
	win := bet.wins(n)
	multiplier := 0.0
	if win {
		multiplier = bet.multiplier()
	}

	return Outcome{
		Game: g.Name(),
		Result: map[string]any{
			"number": n,
			"color":  RouletteColor(n),
			"bet":    bet.kind,
		},
		Multiplier: multiplier,
		Win:        win,
	}, nil
}
