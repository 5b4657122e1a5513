// Package idgen implements the typed, user-scoped, lexically-ordered ID
// scheme described in §3/§4.1: a tagged string
// "<type>,<user><sequence>" where sequence is a pronounceable letter
// pattern (alternating consonants and vowels starting with a consonant)
// admitting a total successor function. Grounded directly on
// _examples/original_source/ids.py, the Python original this system was
// distilled from.
package idgen

import (
	"fmt"
	"regexp"
	"strings"
)

// Type enumerates the kinds of entity an ID can name.
type Type int

const (
	TypeRecord Type = iota
	TypeVersion
	TypeBranch
	TypeView
)

func (t Type) letter() string {
	switch t {
	case TypeRecord:
		return "r"
	case TypeVersion:
		return "v"
	case TypeBranch:
		return "b"
	case TypeView:
		return "w"
	}
	return ""
}

var letterToType = map[string]Type{
	"r": TypeRecord,
	"v": TypeVersion,
	"b": TypeBranch,
	"w": TypeView,
}

const (
	initialConsonants = "bcdfghjklmnprstvwyz"
	consonants        = "bcdfghjklmnprstvwxyz"
	vowels            = "aeiou"
	separator         = ","
	startSequence     = "ba"
)

// RootVersionID and TrunkBranchID are the two reserved IDs from §3.
const (
	RootVersionID ID = "v,ROOT"
	TrunkBranchID ID = "b,TRUNK"
)

// ID is a tagged string of the form "<type>,<user><sequence>".
type ID string

// ErrInvalidID is returned when a string does not match the ID grammar.
var ErrInvalidID = fmt.Errorf("idgen: invalid id")

// idPattern splits an ID into type letter, user, and sequence. The user
// segment is an optional single vowel followed by optional digits ("",
// "u", "7", "u1"); since a sequence always begins with a consonant, the
// split is unambiguous. Other user strings do not parse.
var idPattern = regexp.MustCompile(
	"^([rvbw]?)" + separator + "([" + vowels + "]?[0-9]*)([" + initialConsonants + "][" + vowels + "](?:[" + consonants + "][" + vowels + "])*[" + consonants + "]?)$",
)

// Compose builds an ID out of its parts.
func Compose(t Type, user, sequence string) ID {
	return ID(t.letter() + separator + user + sequence)
}

// Start returns the first ID of the given type and user, using the fixed
// starting sequence "ba".
func Start(t Type, user string) ID {
	return Compose(t, user, startSequence)
}

// Decompose separates the type, user, and sequence of an id. The two
// reserved IDs short-circuit the grammar, per §3.
func Decompose(id ID) (Type, string, string, error) {
	switch id {
	case RootVersionID:
		return TypeVersion, "", "ROOT", nil
	case TrunkBranchID:
		return TypeBranch, "", "TRUNK", nil
	}

	m := idPattern.FindStringSubmatch(string(id))
	if m == nil {
		return 0, "", "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	letter, user, sequence := m[1], m[2], m[3]
	t, ok := letterToType[letter]
	if !ok {
		return 0, "", "", fmt.Errorf("%w: %q has no type prefix", ErrInvalidID, id)
	}
	return t, user, sequence, nil
}

// TypeOf returns the Type of id.
func TypeOf(id ID) (Type, error) {
	t, _, _, err := Decompose(id)
	return t, err
}

// Next generates the next ID in the sequence after id, by incrementing the
// pronounceable sequence in odometer fashion: position 0 cycles through
// initial consonants, odd positions through vowels, even positions through
// consonants; on carry past the leftmost position, a new character is
// appended preserving the alternation.
func Next(id ID) (ID, error) {
	t, user, sequence, err := Decompose(id)
	if err != nil {
		return "", err
	}

	chars := []rune(sequence)
	for i := len(chars) - 1; i >= 0; i-- {
		choices := choicesForPosition(i)
		idx := strings.IndexRune(choices, chars[i])
		if idx == len(choices)-1 {
			chars[i] = rune(choices[0])
			if i == 0 {
				if len(chars)%2 == 0 {
					chars = append(chars, rune(consonants[0]))
				} else {
					chars = append(chars, rune(vowels[0]))
				}
			}
			continue
		}
		chars[i] = rune(choices[idx+1])
		break
	}

	return Compose(t, user, string(chars)), nil
}

func choicesForPosition(i int) string {
	switch {
	case i == 0:
		return initialConsonants
	case i%2 == 0:
		return consonants
	default:
		return vowels
	}
}
