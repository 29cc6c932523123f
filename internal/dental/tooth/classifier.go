// Package tooth provides tooth-number classification across the FDI and
// Universal numbering systems, plus root-canal-count estimation by anatomy.
package tooth

import "strconv"

// System identifies a tooth numbering system
type System string

const (
	SystemFDI       System = "FDI"
	SystemUniversal System = "Universal"
)

// Group is the anatomical bucket a tooth falls into
type Group string

const (
	GroupAnterior   Group = "anterior"
	GroupPremolar   Group = "premolar"
	GroupMolar      Group = "molar"
	GroupThirdMolar Group = "third_molar"
	GroupUnknown    Group = "unknown"
)

// Jaw identifies the upper or lower arch
type Jaw string

const (
	JawMaxillary  Jaw = "maxillary"
	JawMandibular Jaw = "mandibular"
	JawUnknown    Jaw = "unknown"
)

// Classify maps a tooth number in the given system to its anatomical group.
// Out-of-range numbers classify as GroupUnknown; the function never fails.
func Classify(number int, system System) Group {
	switch system {
	case SystemUniversal:
		return classifyUniversal(number)
	default:
		return classifyFDI(number)
	}
}

// ClassifyString accepts a numeric-string tooth identifier. Non-numeric
// input classifies as GroupUnknown.
func ClassifyString(s string, system System) Group {
	n, err := strconv.Atoi(s)
	if err != nil {
		return GroupUnknown
	}
	return Classify(n, system)
}

// classifyFDI uses the two-digit FDI encoding: tens digit 1-4 is the
// quadrant, ones digit 1-8 is the position within the quadrant.
func classifyFDI(number int) Group {
	quadrant := number / 10
	position := number % 10
	if quadrant < 1 || quadrant > 4 {
		return GroupUnknown
	}
	switch {
	case position >= 1 && position <= 3:
		return GroupAnterior
	case position == 4 || position == 5:
		return GroupPremolar
	case position == 6 || position == 7:
		return GroupMolar
	case position == 8:
		return GroupThirdMolar
	default:
		return GroupUnknown
	}
}

// classifyUniversal uses the explicit 1-32 ranges of the US Universal system.
func classifyUniversal(number int) Group {
	if number < 1 || number > 32 {
		return GroupUnknown
	}
	switch number {
	case 1, 16, 17, 32:
		return GroupThirdMolar
	}
	switch {
	case (number >= 6 && number <= 11) || (number >= 22 && number <= 27):
		return GroupAnterior
	case number == 4 || number == 5 || number == 12 || number == 13 ||
		number == 20 || number == 21 || number == 28 || number == 29:
		return GroupPremolar
	case (number >= 1 && number <= 3) || (number >= 14 && number <= 19) ||
		(number >= 30 && number <= 32):
		return GroupMolar
	default:
		return GroupUnknown
	}
}

// ToFDI converts a tooth number in the given system to its FDI equivalent.
// The second return is false when the number is outside the valid range.
func ToFDI(number int, system System) (int, bool) {
	switch system {
	case SystemUniversal:
		return universalToFDI(number)
	default:
		if ValidFDI(number) {
			return number, true
		}
		return 0, false
	}
}

// universalToFDI maps Universal 1-32 onto the four FDI quadrants. Universal
// counts clockwise from the upper-right third molar; FDI positions count
// outward from the midline within each quadrant.
func universalToFDI(number int) (int, bool) {
	switch {
	case number >= 1 && number <= 8:
		return 10 + (9 - number), true
	case number >= 9 && number <= 16:
		return 20 + (number - 8), true
	case number >= 17 && number <= 24:
		return 30 + (25 - number), true
	case number >= 25 && number <= 32:
		return 40 + (number - 24), true
	default:
		return 0, false
	}
}

// ValidFDI reports whether n is a valid two-digit FDI permanent tooth number
// (11-18, 21-28, 31-38, 41-48).
func ValidFDI(n int) bool {
	quadrant := n / 10
	position := n % 10
	return quadrant >= 1 && quadrant <= 4 && position >= 1 && position <= 8
}

// JawOf returns the arch an FDI tooth number belongs to. Quadrants 1 and 2
// are maxillary, 3 and 4 mandibular.
func JawOf(fdi int) Jaw {
	if !ValidFDI(fdi) {
		return JawUnknown
	}
	if fdi/10 <= 2 {
		return JawMaxillary
	}
	return JawMandibular
}
