// Package dice parses tabletop dice notation and evaluates it into rolls.
//
// Parse turns a notation string such as "4d6kh3+2" into an Expression. The
// expression is validated against fixed numeric bounds so that every value a
// Roller receives can be evaluated in bounded time. A Roller then draws faces
// from an injected Source and produces a Result with a total and a
// human-readable breakdown.
package dice

import (
	"strconv"
	"strings"
)

const (
	// MaxDiceCount is the largest number of dice a single group may roll.
	MaxDiceCount = 1000
	// MaxDieSize is the largest face count a die may have.
	MaxDieSize = 10000
	// MaxGroupVolume bounds count*size for a single group.
	MaxGroupVolume = 100000
	// MaxModifier bounds the absolute value of each constant term and of
	// their sum.
	MaxModifier = 1000000
	// PercentileSize is the face count written as "%".
	PercentileSize = 100
)

// SelectionType selects the highest or lowest dice of a group.
type SelectionType byte

const (
	// SelectHighest targets the highest rolled dice.
	SelectHighest SelectionType = 'h'
	// SelectLowest targets the lowest rolled dice.
	SelectLowest SelectionType = 'l'
)

func (t SelectionType) String() string {
	switch t {
	case SelectHighest:
		return "highest"
	case SelectLowest:
		return "lowest"
	default:
		return "unknown"
	}
}

// Selection names how many dice a keep or drop modifier applies to.
type Selection struct {
	Type  SelectionType
	Count int
}

// Group is one NdM term together with its modifiers.
//
// Count carries the sign of the term: a negative count subtracts the group's
// contribution from the total. Its magnitude is the number of dice rolled.
type Group struct {
	Count   int
	Size    int
	Keep    *Selection
	Drop    *Selection
	Reroll  []int
	Explode bool
	Success *int
}

// Dice returns the number of dice rolled for the group.
func (g Group) Dice() int {
	if g.Count < 0 {
		return -g.Count
	}
	return g.Count
}

// Negative reports whether the group is subtracted from the total.
func (g Group) Negative() bool {
	return g.Count < 0
}

// String renders the group in canonical notation, e.g. "-4d6kh3" or "5d10>8".
func (g Group) String() string {
	var b strings.Builder
	if g.Negative() {
		b.WriteByte('-')
	}
	b.WriteString(strconv.Itoa(g.Dice()))
	b.WriteByte('d')
	b.WriteString(strconv.Itoa(g.Size))
	if g.Keep != nil {
		b.WriteByte('k')
		b.WriteByte(byte(g.Keep.Type))
		b.WriteString(strconv.Itoa(g.Keep.Count))
	}
	if g.Drop != nil {
		b.WriteByte('d')
		b.WriteByte(byte(g.Drop.Type))
		b.WriteString(strconv.Itoa(g.Drop.Count))
	}
	if len(g.Reroll) > 0 {
		b.WriteByte('r')
		for i, value := range g.Reroll {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(value))
		}
	}
	if g.Explode {
		b.WriteByte('!')
	}
	if g.Success != nil {
		b.WriteByte('>')
		b.WriteString(strconv.Itoa(*g.Success))
	}
	return b.String()
}

// Expression is a parsed and validated dice notation.
type Expression struct {
	// Dice holds the groups in the order they appeared in the notation.
	Dice []Group
	// Modifier is the sum of every constant term.
	Modifier int
}

// String renders the expression in canonical notation. Constant terms are
// folded into a single trailing modifier.
func (e Expression) String() string {
	var b strings.Builder
	for i, group := range e.Dice {
		if i > 0 && !group.Negative() {
			b.WriteByte('+')
		}
		b.WriteString(group.String())
	}
	switch {
	case e.Modifier > 0:
		b.WriteByte('+')
		b.WriteString(strconv.Itoa(e.Modifier))
	case e.Modifier < 0:
		b.WriteString(strconv.Itoa(e.Modifier))
	}
	return b.String()
}

func intPtr(value int) *int {
	return &value
}
