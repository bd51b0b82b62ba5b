// Package dice implements single dice and the random sources that roll them.
package dice

import (
	"errors"
	"fmt"
)

// ErrInvalidDie is matched by errors.Is for every InvalidDieError.
var ErrInvalidDie = errors.New("die must have at least one face")

// InvalidDieError reports a die with fewer than one face.
type InvalidDieError struct {
	Faces int
}

func (e *InvalidDieError) Error() string {
	return fmt.Sprintf("invalid die d%d: must have at least one face", e.Faces)
}

// Is makes errors.Is(err, ErrInvalidDie) hold.
func (e *InvalidDieError) Is(target error) bool {
	return target == ErrInvalidDie
}

// Die is a single die type. Dice carry no state and may be shared freely.
type Die struct {
	faces int
}

// Common dice
var (
	D4   = Die{faces: 4}
	D6   = Die{faces: 6}
	D8   = Die{faces: 8}
	D10  = Die{faces: 10}
	D12  = Die{faces: 12}
	D20  = Die{faces: 20}
	D100 = Die{faces: 100}
)

// New returns a die with the given number of faces.
func New(faces int) (Die, error) {
	if faces < 1 {
		return Die{}, &InvalidDieError{Faces: faces}
	}
	return Die{faces: faces}, nil
}

// MustNew is like New but panics on an invalid face count.
func MustNew(faces int) Die {
	d, err := New(faces)
	if err != nil {
		panic(err)
	}
	return d
}

// Faces returns the highest value the die can roll.
func (d Die) Faces() int {
	return d.faces
}

// Roll rolls the die once using src.
// The zero Die has no faces and fails with an InvalidDieError.
func (d Die) Roll(src Source) (int, error) {
	return Roll(src, d.faces)
}

// String returns the die in dice notation, e.g. "d20".
func (d Die) String() string {
	return fmt.Sprintf("d%d", d.faces)
}

// Roll returns a value uniformly distributed over [1, maxRoll].
func Roll(src Source, maxRoll int) (int, error) {
	if maxRoll < 1 {
		return 0, &InvalidDieError{Faces: maxRoll}
	}
	return src.IntN(maxRoll) + 1, nil
}
