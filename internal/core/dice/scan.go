package dice

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// term is one signed piece of a notation string, split at '+' and '-'.
type term struct {
	negative bool
	text     string
}

// splitTerms removes whitespace and splits the notation at every '+' and '-'.
// The sign preceding a term belongs to that term; a leading sign applies to
// the first term.
func splitTerms(input string) []term {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, input)

	var terms []term
	negative := false
	start := 0
	for i := 0; i < len(compact); i++ {
		switch compact[i] {
		case '+', '-':
			if i > 0 {
				terms = append(terms, term{negative: negative, text: compact[start:i]})
			}
			negative = compact[i] == '-'
			start = i + 1
		}
	}
	return append(terms, term{negative: negative, text: compact[start:]})
}

// scanner walks a single term byte by byte. Letters compare case-insensitively.
type scanner struct {
	src string
	pos int
}

func (s *scanner) done() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) peek() byte {
	if s.done() {
		return 0
	}
	return lower(s.src[s.pos])
}

// accept consumes c if it is the next byte.
func (s *scanner) accept(c byte) bool {
	if s.peek() == c && !s.done() {
		s.pos++
		return true
	}
	return false
}

// number consumes a run of decimal digits. It reports false when no digits
// are present. A run that does not fit in an int saturates at math.MaxInt so
// the bound checks still report it.
func (s *scanner) number() (int, bool) {
	start := s.pos
	for !s.done() && isDigit(s.src[s.pos]) {
		s.pos++
	}
	if start == s.pos {
		return 0, false
	}
	value, err := strconv.Atoi(s.src[start:s.pos])
	if err != nil {
		return math.MaxInt, true
	}
	return value, true
}

// selection consumes the "h<n>" or "l<n>" tail of a keep or drop modifier.
func (s *scanner) selection() (*Selection, bool) {
	var kind SelectionType
	switch {
	case s.accept('h'):
		kind = SelectHighest
	case s.accept('l'):
		kind = SelectLowest
	default:
		return nil, false
	}
	count, ok := s.number()
	if !ok {
		return nil, false
	}
	return &Selection{Type: kind, Count: count}, true
}

// matchDiceTerm recognizes
//
//	[count] d (size | %) [kh|kl n] [dh|dl n] [r v(,v)*] [!] [> t]
//
// Keep and drop may appear in either order; each at most once. Bounds are not
// checked here.
func matchDiceTerm(text string) (Group, bool) {
	s := &scanner{src: text}
	group := Group{Count: 1}

	if !s.done() && isDigit(s.src[0]) {
		count, ok := s.number()
		if !ok {
			return Group{}, false
		}
		group.Count = count
	}
	if !s.accept('d') {
		return Group{}, false
	}
	if s.accept('%') {
		group.Size = PercentileSize
	} else {
		size, ok := s.number()
		if !ok {
			return Group{}, false
		}
		group.Size = size
	}

	for {
		switch {
		case group.Keep == nil && s.accept('k'):
			keep, ok := s.selection()
			if !ok {
				return Group{}, false
			}
			group.Keep = keep
			continue
		case group.Drop == nil && s.accept('d'):
			drop, ok := s.selection()
			if !ok {
				return Group{}, false
			}
			group.Drop = drop
			continue
		}
		break
	}

	if s.accept('r') {
		for {
			value, ok := s.number()
			if !ok {
				return Group{}, false
			}
			group.Reroll = append(group.Reroll, value)
			if !s.accept(',') {
				break
			}
		}
	}
	if s.accept('!') {
		group.Explode = true
	}
	if s.accept('>') {
		threshold, ok := s.number()
		if !ok {
			return Group{}, false
		}
		group.Success = intPtr(threshold)
	}
	if !s.done() {
		return Group{}, false
	}
	return group, true
}

// matchConstantTerm recognizes a whole number.
func matchConstantTerm(text string) (int, bool) {
	s := &scanner{src: text}
	value, ok := s.number()
	if !ok || !s.done() {
		return 0, false
	}
	return value, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
