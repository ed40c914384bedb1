package game

const baccaratCards = 6

var cardRanks = [13]string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
var cardSuits = [4]string{"S", "H", "D", "C"}

// Baccarat is punto banco dealt from an infinite shoe: every card is
// floor(f * 52) of a fresh deck
type Baccarat struct{}

func (g *Baccarat) Name() string { return "baccarat" }

// Up to six cards; unused floats are ignored
func (g *Baccarat) FloatCount(Params) int { return baccaratCards }

func (g *Baccarat) Validate(p Params) error {
	bet, _ := p.Text("bet")
	switch bet {
	case "player", "banker", "tie":
		return nil
	}
	return invalid("baccarat bet must be player, banker or tie")
}

func (g *Baccarat) MaxMultiplier(p Params) float64 {
	bet, _ := p.Text("bet")
	switch bet {
	case "player":
		return 2
	case "banker":
		return 1.95
	case "tie":
		return 9
	}
	return 0
}

func cardName(card int) string {
	return cardRanks[card%13] + cardSuits[card/13]
}

func cardValue(card int) int {
	rank := card % 13
	if rank >= 9 {
		return 0
	}
	return rank + 1
}

// BaccaratHand is the dealt cards of one coup
type BaccaratHand struct {
	Player []int
	Banker []int
}

func handTotal(cards []int) int {
	total := 0
	for _, c := range cards {
		total += cardValue(c)
	}
	return total % 10
}

// DealBaccarat applies the tableau: player and banker alternate the first
// four cards, naturals stand, player draws on 0-5, banker draws by the
// player's third card.
func DealBaccarat(floats []float64) BaccaratHand {
	next := 0
	draw := func() int {
		card := int(floats[next] * 52)
		next++
		return card
	}

	h := BaccaratHand{}
	h.Player = append(h.Player, draw())
	h.Banker = append(h.Banker, draw())
	h.Player = append(h.Player, draw())
	h.Banker = append(h.Banker, draw())

	pt, bt := handTotal(h.Player), handTotal(h.Banker)
	if pt >= 8 || bt >= 8 {
		return h
	}

	if pt > 5 {
		if bt <= 5 {
			h.Banker = append(h.Banker, draw())
		}
		return h
	}

	third := draw()
	h.Player = append(h.Player, third)
	if bankerDraws(bt, cardValue(third)) {
		h.Banker = append(h.Banker, draw())
	}
	return h
}

func bankerDraws(bankerTotal, playerThird int) bool {
	switch bankerTotal {
	case 0, 1, 2:
		return true
	case 3:
		return playerThird != 8
	case 4:
		return playerThird >= 2 && playerThird <= 7
	case 5:
		return playerThird >= 4 && playerThird <= 7
	case 6:
		return playerThird == 6 || playerThird == 7
	}
	return false
}

func (g *Baccarat) Evaluate(floats []float64, p Params) (Outcome, error) {
	if err := needFloats(g.Name(), floats, baccaratCards); err != nil {
		return Outcome{}, err
	}
	if err := g.Validate(p); err != nil {
		return Outcome{}, err
	}
	bet, _ := p.Text("bet")

	hand := DealBaccarat(floats)
	pt, bt := handTotal(hand.Player), handTotal(hand.Banker)

	winner := "tie"
	switch {
	case pt > bt:
		winner = "player"
	case bt > pt:
		winner = "banker"
	}

	multiplier := 0.0
	switch {
	case bet == winner:
		multiplier = g.MaxMultiplier(p)
	case winner == "tie":
		// player and banker bets push
		multiplier = 1
	}

	names := func(cards []int) []string {
		out := make([]string, len(cards))
		for i, c := range cards {
			out[i] = cardName(c)
		}
		return out
	}

	return Outcome{
		Game: g.Name(),
		Result: map[string]any{
			"player":      names(hand.Player),
			"banker":      names(hand.Banker),
			"playerTotal": pt,
			"bankerTotal": bt,
			"winner":      winner,
			"bet":         bet,
		},
		Multiplier: multiplier,
		Win:        bet == winner,
	}, nil
}
