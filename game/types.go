package game

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrUnknownGame   = errors.New("unknown game")
	ErrInvalidParams = errors.New("invalid game parameters")
)

// Seeds identifies the seed pair an outcome is derived from. The server seed
// is used as raw ASCII, never hex-decoded.
type Seeds struct {
	Server string `json:"serverSeed"`
	Client string `json:"clientSeed"`
}

// Params are the player's choices for one bet, usually decoded from JSON
type Params map[string]any

// Outcome is the result of evaluating one bet
type Outcome struct {
	Game       string         `json:"game"`
	Result     map[string]any `json:"result"`
	Multiplier float64        `json:"multiplier"`
	Win        bool           `json:"win"`
}

// Game maps fair floats and player params to an outcome
type Game interface {
	Name() string
	// FloatCount is the number of floats Evaluate consumes
	FloatCount(p Params) int
	Validate(p Params) error
	Evaluate(floats []float64, p Params) (Outcome, error)
	// MaxMultiplier is the best multiplier reachable with p
	MaxMultiplier(p Params) float64
}

// Registry holds every game configured with one house edge
type Registry struct {
	houseEdge float64
	tables    *Tables
	games     map[string]Game
}

// NewRegistry builds all games. tables may be nil to use the embedded
// payout tables.
func NewRegistry(houseEdge float64, tables *Tables) (*Registry, error) {
	if houseEdge < 0 || houseEdge >= 0.5 {
		return nil, fmt.Errorf("house edge out of range: %v", houseEdge)
	}
	if tables == nil {
		var err error
		if tables, err = DefaultTables(); err != nil {
			return nil, err
		}
	}

	r := &Registry{houseEdge: houseEdge, tables: tables, games: make(map[string]Game)}
	for _, g := range []Game{
		&Dice{HouseEdge: houseEdge},
		&Limbo{HouseEdge: houseEdge},
		&Crash{HouseEdge: houseEdge},
		&Mines{HouseEdge: houseEdge},
		&Plinko{Tables: tables.Plinko},
		&Keno{Tables: tables.Keno},
		&Roulette{},
		&Slots{Table: tables.Slots},
		&Coinflip{HouseEdge: houseEdge},
		&Wheel{Tables: tables.Wheel},
		&Baccarat{},
		&Candleflip{HouseEdge: houseEdge},
	} {
		r.games[g.Name()] = g
	}
	return r, nil
}

// HouseEdge returns the configured edge
func (r *Registry) HouseEdge() float64 { return r.houseEdge }

// Tables returns the payout tables in use
func (r *Registry) Tables() *Tables { return r.tables }

// Lookup returns the named game
func (r *Registry) Lookup(name string) (Game, error) {
	g, ok := r.games[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, name)
	}
	return g, nil
}

// Names returns all game names sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.games))
	for name := range r.games {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Play validates params and evaluates the bet identified by (seeds, nonce)
func (r *Registry) Play(name string, seeds Seeds, nonce uint64, p Params) (Outcome, error) {
	g, err := r.Lookup(name)
	if err != nil {
		return Outcome{}, err
	}
	if err := g.Validate(p); err != nil {
		return Outcome{}, err
	}
	floats := Floats(seeds, nonce, g.FloatCount(p))
	return g.Evaluate(floats, p)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}

func needFloats(name string, floats []float64, n int) error {
	if len(floats) < n {
		return fmt.Errorf("%s requires %d floats, got %d", name, n, len(floats))
	}
	return nil
}

// floorTo rounds v down to the given decimal places. The small bias keeps
// values like 1.15 from flooring to 1.14.
func floorTo(v float64, places int) float64 {
	ratio := math.Pow(10, float64(places))
	return math.Floor(v*ratio+1e-9) / ratio
}
