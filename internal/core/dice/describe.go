package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// Describe summarizes the group for people, e.g.
// "4d6 (keep highest 3)" or "-2d10 (reroll 1, 2) (exploding dice)".
func (g Group) Describe() string {
	var b strings.Builder
	if g.Negative() {
		b.WriteByte('-')
	}
	fmt.Fprintf(&b, "%dd%d", g.Dice(), g.Size)
	if g.Keep != nil {
		fmt.Fprintf(&b, " (keep %s %d)", g.Keep.Type, g.Keep.Count)
	}
	if g.Drop != nil {
		fmt.Fprintf(&b, " (drop %s %d)", g.Drop.Type, g.Drop.Count)
	}
	if len(g.Reroll) > 0 {
		values := make([]string, len(g.Reroll))
		for i, value := range g.Reroll {
			values[i] = strconv.Itoa(value)
		}
		fmt.Fprintf(&b, " (reroll %s)", strings.Join(values, ", "))
	}
	if g.Explode {
		b.WriteString(" (exploding dice)")
	}
	if g.Success != nil {
		fmt.Fprintf(&b, " (success on %d+)", *g.Success)
	}
	return b.String()
}

// Bounds returns the smallest and largest totals the expression can produce,
// ignoring explosions, which have no upper bound.
func (e Expression) Bounds() (lo, hi int) {
	lo, hi = e.Modifier, e.Modifier
	for _, group := range e.Dice {
		retained := group.Dice()
		switch {
		case group.Keep != nil:
			retained = group.Keep.Count
		case group.Drop != nil:
			retained -= group.Drop.Count
		}

		groupLo, groupHi := retained, retained*group.Size
		if group.Success != nil {
			// A threshold of 1 is met by every face.
			groupLo, groupHi = 0, retained
			if *group.Success == 1 {
				groupLo = retained
			}
		}
		if group.Negative() {
			groupLo, groupHi = -groupHi, -groupLo
		}
		lo += groupLo
		hi += groupHi
	}
	return lo, hi
}
