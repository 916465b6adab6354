// Package dice rolls pools of six-sided dice, including the exploding
// chain triggered when every initial die shows a six.
package dice

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

const Sides = 6

var ErrInvalidDiceCount = errors.New("invalid dice count")

// Roller produces single d6 faces.
type Roller interface {
	D6() (int, error)
}

// RandomRoller draws faces from math/rand/v2.
type RandomRoller struct{}

var _ Roller = RandomRoller{}

func NewRandomRoller() RandomRoller {
	return RandomRoller{}
}

func (RandomRoller) D6() (int, error) {
	return rand.IntN(Sides) + 1, nil
}

// Pool is the result of rolling a pool. Dice holds the initial faces
// followed by any explosion faces.
type Pool struct {
	Dice       []int `json:"dice"`
	Initial    int   `json:"initial"`
	Explosions int   `json:"explosions"`
}

// RollPool rolls count dice. When explode is set and every initial die is
// a six, one more die is rolled repeatedly while it shows six; the final
// non-six is kept too.
func RollPool(r Roller, count int, explode bool) (*Pool, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDiceCount, count)
	}

	p := &Pool{Dice: make([]int, 0, count+1), Initial: count}
	for i := 0; i < count; i++ {
		face, err := roll(r)
		if err != nil {
			return nil, err
		}
		p.Dice = append(p.Dice, face)
	}

	if !explode || !p.AllSixes() {
		return p, nil
	}

	for {
		face, err := roll(r)
		if err != nil {
			return nil, err
		}
		p.Dice = append(p.Dice, face)
		p.Explosions++
		if face != Sides {
			return p, nil
		}
	}
}

func roll(r Roller) (int, error) {
	face, err := r.D6()
	if err != nil {
		return 0, fmt.Errorf("failed to roll d6: %w", err)
	}
	if face < 1 || face > Sides {
		return 0, fmt.Errorf("invalid roll %d for d%d", face, Sides)
	}
	return face, nil
}

// InitialDice returns the faces of the initial pool.
func (p *Pool) InitialDice() []int {
	return p.Dice[:p.Initial]
}

// AllSixes reports whether every initial die shows a six.
func (p *Pool) AllSixes() bool {
	if p.Initial < 1 {
		return false
	}
	for _, d := range p.InitialDice() {
		if d != Sides {
			return false
		}
	}
	return true
}

// Sum adds every face, explosions included.
func (p *Pool) Sum() int {
	total := 0
	for _, d := range p.Dice {
		total += d
	}
	return total
}

// LowestInitial returns the index of the first occurrence of the lowest
// initial face.
func (p *Pool) LowestInitial() int {
	idx := 0
	for i := 1; i < p.Initial; i++ {
		if p.Dice[i] < p.Dice[idx] {
			idx = i
		}
	}
	return idx
}
