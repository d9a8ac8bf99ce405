package dice

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/louisbranch/dicenotation/internal/core/check"
)

// DefaultExplodeLimit caps how many extra faces a single exploding die may
// add before the roll is abandoned.
const DefaultExplodeLimit = 1000

// ErrMissingDice indicates an expression without any dice group.
var ErrMissingDice = errors.New("at least one dice group is required")

// ErrModifierRange indicates an expression whose modifier lies outside
// [-MaxModifier, MaxModifier]. Parse never produces one.
var ErrModifierRange = errors.New("modifier out of range")

// Source draws uniformly distributed integers.
type Source interface {
	// IntRange returns a value in [lo, hi]. Precondition: lo <= hi.
	IntRange(lo, hi int) int
}

// Die records everything that happened to one die of a group.
type Die struct {
	// Faces are the faces counted toward Value; an exploded die has several.
	Faces []int
	// Value is the sum of Faces.
	Value int
	// Replaced holds the faces discarded by a reroll, if any.
	Replaced []int
	// Dropped marks a die discarded by a keep or drop modifier.
	Dropped bool
	// Success marks a retained die that met the group's success threshold.
	Success bool
}

// Rerolled reports whether the die was rerolled.
func (d Die) Rerolled() bool {
	return len(d.Replaced) > 0
}

// GroupResult captures the evaluation of a single dice group.
type GroupResult struct {
	Group Group
	Dice  []Die
	// Contribution is the signed amount the group adds to the total: the sum
	// of retained dice, or the number of successes for success-counting
	// groups.
	Contribution int
}

// Result is the outcome of rolling an Expression.
type Result struct {
	Groups    []GroupResult
	Modifier  int
	Total     int
	Breakdown string
}

// Roller evaluates expressions using an injected Source.
type Roller struct {
	source       Source
	explodeLimit int
}

// NewRoller creates a roller drawing faces from source.
func NewRoller(source Source) *Roller {
	return &Roller{source: source, explodeLimit: DefaultExplodeLimit}
}

// WithExplodeLimit returns a copy of the roller with a different explosion cap.
func (r *Roller) WithExplodeLimit(limit int) *Roller {
	clone := *r
	clone.explodeLimit = limit
	return &clone
}

// Roll evaluates expr.
//
// # Evaluation order
//
// Each group is evaluated in the order it appears in expr.Dice:
//
//  1. roll |Count| dice, each uniform over [1, Size];
//  2. explode: a die showing Size rolls again and adds the new face, repeating
//     while the newest face is also Size;
//  3. reroll: a die whose value is in Reroll is rolled once more and the new
//     face replaces it;
//  4. keep or drop: dice are ordered by value (stable, so ties keep their roll
//     order) and the unselected ones are marked Dropped;
//  5. the group contributes the sum of retained dice, or the number of
//     retained dice meeting Success when a threshold is set;
//  6. a negative Count negates the contribution.
//
// Result.Total is the sum of all contributions plus expr.Modifier.
//
// # Errors
//
// An expression produced by Parse only fails when an exploding die keeps
// rolling its maximum face past the explosion limit, which returns an error
// matching ErrExplodeLimit. With Size 1 every face is the maximum, so such a
// group always fails.
func (r *Roller) Roll(expr Expression) (Result, error) {
	if r == nil || r.source == nil {
		return Result{}, errors.New("roller source is not configured")
	}
	if len(expr.Dice) == 0 {
		return Result{}, ErrMissingDice
	}
	if expr.Modifier > MaxModifier || expr.Modifier < -MaxModifier {
		return Result{}, ErrModifierRange
	}

	result := Result{
		Groups:   make([]GroupResult, 0, len(expr.Dice)),
		Modifier: expr.Modifier,
		Total:    expr.Modifier,
	}
	for _, group := range expr.Dice {
		groupResult, err := r.rollGroup(group)
		if err != nil {
			return Result{}, err
		}
		result.Groups = append(result.Groups, groupResult)
		result.Total += groupResult.Contribution
	}
	result.Breakdown = formatBreakdown(result)
	return result, nil
}

func (r *Roller) rollGroup(group Group) (GroupResult, error) {
	dice := make([]Die, group.Dice())
	for i := range dice {
		face := r.rollDie(group.Size)
		dice[i] = Die{Faces: []int{face}, Value: face}
	}

	if group.Explode {
		for i := range dice {
			if err := r.explode(&dice[i], group); err != nil {
				return GroupResult{}, err
			}
		}
	}

	if len(group.Reroll) > 0 {
		for i := range dice {
			if !containsValue(group.Reroll, dice[i].Value) {
				continue
			}
			face := r.rollDie(group.Size)
			dice[i].Replaced = dice[i].Faces
			dice[i].Faces = []int{face}
			dice[i].Value = face
		}
	}

	switch {
	case group.Keep != nil:
		for rank, index := range rankDice(dice, group.Keep.Type) {
			if rank >= group.Keep.Count {
				dice[index].Dropped = true
			}
		}
	case group.Drop != nil:
		for rank, index := range rankDice(dice, group.Drop.Type) {
			if rank < group.Drop.Count {
				dice[index].Dropped = true
			}
		}
	}

	contribution := 0
	if group.Success != nil {
		retained := make([]int, 0, len(dice))
		for i := range dice {
			if dice[i].Dropped {
				continue
			}
			retained = append(retained, dice[i].Value)
			dice[i].Success = check.MeetsThreshold(dice[i].Value, *group.Success)
		}
		contribution = check.Count(retained, *group.Success).Successes
	} else {
		for _, die := range dice {
			if !die.Dropped {
				contribution += die.Value
			}
		}
	}
	if group.Negative() {
		contribution = -contribution
	}

	return GroupResult{Group: group, Dice: dice, Contribution: contribution}, nil
}

// explode keeps adding faces while the newest face is the maximum.
func (r *Roller) explode(die *Die, group Group) error {
	last := die.Faces[len(die.Faces)-1]
	for extra := 0; last == group.Size; extra++ {
		if extra >= r.explodeLimit {
			return fmt.Errorf("%w: %s rolled its maximum face %d times in a row", ErrExplodeLimit, group, r.explodeLimit+1)
		}
		last = r.rollDie(group.Size)
		die.Faces = append(die.Faces, last)
		die.Value += last
	}
	return nil
}

func (r *Roller) rollDie(size int) int {
	return r.source.IntRange(1, size)
}

// rankDice returns dice indexes ordered by value, highest first for
// SelectHighest and lowest first for SelectLowest. Equal values keep their
// roll order.
func rankDice(dice []Die, kind SelectionType) []int {
	order := make([]int, len(dice))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if kind == SelectHighest {
			return dice[order[a]].Value > dice[order[b]].Value
		}
		return dice[order[a]].Value < dice[order[b]].Value
	})
	return order
}

func containsValue(values []int, target int) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

// formatBreakdown renders one fragment per group followed by the modifier:
//
//	4d6kh3 [6, 5, 3, ~1~] = 14, modifier +2
//
// Exploded maximum faces are suffixed with "!", rerolls render as
// "old→new", successes are suffixed with "*" and dropped dice are wrapped
// in "~".
func formatBreakdown(result Result) string {
	fragments := make([]string, 0, len(result.Groups)+1)
	for _, group := range result.Groups {
		fragments = append(fragments, formatGroup(group))
	}
	if result.Modifier != 0 {
		fragments = append(fragments, fmt.Sprintf("modifier %+d", result.Modifier))
	}
	return strings.Join(fragments, ", ")
}

func formatGroup(result GroupResult) string {
	dice := make([]string, len(result.Dice))
	for i, die := range result.Dice {
		dice[i] = formatDie(die, result.Group)
	}
	fragment := fmt.Sprintf("%s [%s] = %d", result.Group, strings.Join(dice, ", "), result.Contribution)
	if result.Group.Success != nil {
		if result.Contribution == 1 || result.Contribution == -1 {
			return fragment + " success"
		}
		return fragment + " successes"
	}
	return fragment
}

func formatDie(die Die, group Group) string {
	text := formatFaces(die.Faces, group)
	if die.Rerolled() {
		text = formatFaces(die.Replaced, group) + "→" + text
	}
	if die.Success {
		text += "*"
	}
	if die.Dropped {
		text = "~" + text + "~"
	}
	return text
}

func formatFaces(faces []int, group Group) string {
	parts := make([]string, len(faces))
	for i, face := range faces {
		parts[i] = strconv.Itoa(face)
		if group.Explode && face == group.Size {
			parts[i] += "!"
		}
	}
	return strings.Join(parts, "+")
}
