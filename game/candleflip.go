//game/candleflip.go
package game

import (
	"math"

	"coinhype/config"
)

// Each tick consumes exactly three floats: move size, magnitude, direction
const candleflipFloatsPerTick = 3

// Candleflip runs a 40-tick price walk from 1.0; bullish wins when the
// final price is at or above the start
type Candleflip struct {
	HouseEdge float64
}

func (g *Candleflip) Name() string { return "candleflip" }

func (g *Candleflip) FloatCount(Params) int {
	return config.CandleflipTotalTicks * candleflipFloatsPerTick
}

func (g *Candleflip) Validate(p Params) error {
	side, _ := p.Text("side")
	if side != "bullish" && side != "bearish" {
		return invalid("candleflip side must be bullish or bearish")
	}
	return nil
}

func (g *Candleflip) MaxMultiplier(Params) float64 {
	return floorTo(2*(1-g.HouseEdge), 4)
}

// GenerateCandleflipPrice generates next price based on percentage changes (fair)
func GenerateCandleflipPrice(chance, magnitude, direction, lastPrice float64) float64 {
	var percentChange float64

	if chance < config.CandleflipBigMoveChance {
		// 1% chance for big move (±20%)
		percentChange = config.CandleflipBigMovePct
	} else {
		// 99% chance for small move (±1% to ±5%)
		percentChange = config.CandleflipSmallMovePctMin +
			magnitude*(config.CandleflipSmallMovePctMax-config.CandleflipSmallMovePctMin)
	}
	if direction < 0.5 {
		percentChange = -percentChange
	}

	newPrice := lastPrice * (1 + percentChange)
	// Prevent negative prices
	if newPrice < 0 {
		newPrice = 0
	}
	return newPrice
}

// SimulateCandleflip returns the full price history and the winning candle
func SimulateCandleflip(floats []float64) ([]float64, string) {
	priceHistory := make([]float64, config.CandleflipTotalTicks+1)
	priceHistory[0] = config.CandleflipStartingPrice
	currentPrice := config.CandleflipStartingPrice

	for i := 0; i < config.CandleflipTotalTicks; i++ {
		f := floats[i*candleflipFloatsPerTick:]
		currentPrice = GenerateCandleflipPrice(f[0], f[1], f[2], currentPrice)
		priceHistory[i+1] = currentPrice
	}

	// RED wins if final price < 1.0, GREEN wins if >= 1.0
	if currentPrice < config.CandleflipStartingPrice {
		return priceHistory, "RED"
	}
	return priceHistory, "GREEN"
}

func (g *Candleflip) Evaluate(floats []float64, p Params) (Outcome, error) {
	if err := needFloats(g.Name(), floats, g.FloatCount(p)); err != nil {
		return Outcome{}, err
	}
	if err := g.Validate(p); err != nil {
		return Outcome{}, err
	}
	side, _ := p.Text("side")

	history, winner := SimulateCandleflip(floats)
	win := (side == "bullish" && winner == "GREEN") || (side == "bearish" && winner == "RED")
	multiplier := 0.0
	if win {
		multiplier = g.MaxMultiplier(p)
	}

	rounded := make([]float64, len(history))
	for i, v := range history {
		rounded[i] = RoundToDecimal(v, 6)
	}

	return Outcome{
		Game: g.Name(),
		Result: map[string]any{
			"side":       side,
			"winner":     winner,
			"finalPrice": rounded[len(rounded)-1],
			"prices":     rounded,
		},
		Multiplier: multiplier,
		Win:        win,
	}, nil
}

// RoundToDecimal rounds a float to specified decimal places
func RoundToDecimal(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
