package dice

import "strings"

// Parse converts a notation string into a validated Expression.
//
// Terms are split at '+' and '-'. Each term is either a dice group or a whole
// number; numbers are summed into the expression modifier. Parse fails when
// the input is blank, when no dice group is present, when a term matches
// neither shape, when a group violates a numeric bound, or when a constant
// or the modifier sum leaves [-MaxModifier, MaxModifier]. Groups are
// validated left to right and the first violated rule is reported; the
// modifier is checked after every group passes.
//
// All returned errors are *NotationError and match ErrInvalidNotation.
func Parse(input string) (Expression, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Expression{}, errEmptyNotation()
	}

	type parsedGroup struct {
		group Group
		text  string
	}

	var (
		groups   []parsedGroup
		modifier int
		invalid  *term
		// outOfRange is the first constant or running sum past MaxModifier.
		outOfRange *int
	)
	for _, t := range splitTerms(trimmed) {
		if group, ok := matchDiceTerm(t.text); ok {
			if t.negative {
				group.Count = -group.Count
			}
			groups = append(groups, parsedGroup{group: group, text: t.text})
			continue
		}
		if value, ok := matchConstantTerm(t.text); ok {
			if t.negative {
				value = -value
			}
			if outOfRange != nil {
				continue
			}
			if value > MaxModifier || value < -MaxModifier {
				outOfRange = &value
				continue
			}
			if next := modifier + value; next > MaxModifier || next < -MaxModifier {
				outOfRange = &next
				continue
			}
			modifier += value
			continue
		}
		if invalid == nil {
			invalid = &t
		}
	}

	if len(groups) == 0 {
		return Expression{}, errNoDiceGroup()
	}
	if invalid != nil {
		return Expression{}, errInvalidPart(invalid.text)
	}

	expr := Expression{
		Dice:     make([]Group, 0, len(groups)),
		Modifier: modifier,
	}
	for _, parsed := range groups {
		if err := validateGroup(parsed.group, parsed.text); err != nil {
			return Expression{}, err
		}
		expr.Dice = append(expr.Dice, parsed.group)
	}
	if outOfRange != nil {
		return Expression{}, notationErrorf("Modifier out of range: %d. Must be between %d and %d.", *outOfRange, -MaxModifier, MaxModifier)
	}
	return expr, nil
}

// MustParse parses notation and panics on error. It is meant for notation
// literals known to be valid.
func MustParse(notation string) Expression {
	expr, err := Parse(notation)
	if err != nil {
		panic("dice: MustParse(" + notation + "): " + err.Error())
	}
	return expr
}

// validateGroup applies the bound checks in their fixed order. The order is
// observable: when several rules are broken the first one is reported.
func validateGroup(group Group, text string) error {
	count := group.Dice()
	if count <= 0 {
		return notationErrorf("Invalid dice count: %d. Must be positive.", count)
	}
	if group.Size <= 0 {
		return notationErrorf("Invalid die size: %d. Must be positive.", group.Size)
	}
	if count > MaxDiceCount {
		return notationErrorf("Too many dice: %d. Maximum is %d.", count, MaxDiceCount)
	}
	if group.Size > MaxDieSize {
		return notationErrorf("Die size too large: %d. Maximum is %d.", group.Size, MaxDieSize)
	}
	if count*group.Size > MaxGroupVolume {
		return notationErrorf("Dice combination too large: %dd%d. Risk of excessive computation.", count, group.Size)
	}
	if group.Keep != nil && group.Drop != nil {
		return notationErrorf("Cannot keep and drop dice in the same group: %s.", text)
	}
	if group.Keep != nil {
		if err := validateSelection("keep", group.Keep, count); err != nil {
			return err
		}
	}
	if group.Drop != nil {
		if err := validateSelection("drop", group.Drop, count); err != nil {
			return err
		}
	}
	for _, value := range group.Reroll {
		if value < 1 || value > group.Size {
			return notationErrorf("Invalid reroll value: %d. Must be between 1 and %d.", value, group.Size)
		}
	}
	if group.Success != nil {
		threshold := *group.Success
		if threshold < 1 || threshold > group.Size {
			return notationErrorf("Invalid success threshold: %d. Must be between 1 and %d.", threshold, group.Size)
		}
	}
	return nil
}

func validateSelection(verb string, selection *Selection, count int) error {
	if selection.Count <= 0 {
		return notationErrorf("Invalid %s count: %d. Must be positive.", verb, selection.Count)
	}
	if selection.Count >= count {
		return notationErrorf("Cannot %s %d dice from only %d dice.", verb, selection.Count, count)
	}
	return nil
}
