package workcode

import "fmt"

// =============================================================================
// SEQUENCE VALIDATION
// =============================================================================

// Violation is one advisory finding of ValidateSequence.
type Violation struct {
	Index   int    // position in the validated list
	Code    Code   // offending code
	Missing []Code // predecessors of which none appeared earlier
	Message string
}

// Validation is the result of ValidateSequence. It never carries an error:
// an invalid sequence is information for the status machine, not a failure.
type Validation struct {
	Valid      bool
	Violations []Violation
}

// Messages returns the human-readable violation texts.
func (v Validation) Messages() []string {
	out := make([]string, len(v.Violations))
	for i, viol := range v.Violations {
		out[i] = viol.Message
	}
	return out
}

// ValidateSequence checks an ordered list of codes. The first code must be
// ENTRY; every later code needs at least one of its required predecessors
// somewhere before it. Invalid codes are reported, not rejected.
func ValidateSequence(codes []Code) Validation {
	result := Validation{Valid: true}
	seen := make(map[Code]bool, numCodes)

	for i, c := range codes {
		if !c.Valid() {
			result.add(Violation{
				Index:   i,
				Code:    c,
				Message: fmt.Sprintf("position %d: unknown work code %d", i+1, int(c)),
			})
			continue
		}

		if i == 0 {
			if c != Entry {
				result.add(Violation{
					Index:   i,
					Code:    c,
					Missing: []Code{Entry},
					Message: fmt.Sprintf("position 1: %s cannot open the day, expected ENTRY", c),
				})
			}
			seen[c] = true
			continue
		}

		preds := table[c].RequiredPredecessors
		if len(preds) > 0 && !anySeen(seen, preds) {
			result.add(Violation{
				Index:   i,
				Code:    c,
				Missing: append([]Code(nil), preds...),
				Message: fmt.Sprintf("position %d: %s requires a previous %s", i+1, c, orList(preds)),
			})
		}
		seen[c] = true
	}
	return result
}

func (v *Validation) add(viol Violation) {
	v.Valid = false
	v.Violations = append(v.Violations, viol)
}

func anySeen(seen map[Code]bool, codes []Code) bool {
	for _, c := range codes {
		if seen[c] {
			return true
		}
	}
	return false
}

func orList(codes []Code) string {
	switch len(codes) {
	case 0:
		return ""
	case 1:
		return codes[0].String()
	}
	s := ""
	for i, c := range codes {
		switch {
		case i == 0:
			s = c.String()
		case i == len(codes)-1:
			s += " or " + c.String()
		default:
			s += ", " + c.String()
		}
	}
	return s
}

// =============================================================================
// EXPECTED NEXT CODES
// =============================================================================

var next = [numCodes][]Code{
	Entry:      {Exit, BreakStart, LunchStart},
	Exit:       {Entry},
	BreakStart: {BreakEnd},
	BreakEnd:   {Exit, BreakStart, LunchStart},
	LunchStart: {LunchEnd},
	LunchEnd:   {Exit, BreakStart, LunchStart},
}

// ExpectedFirst is the legal opening of a day.
func ExpectedFirst() []Code { return []Code{Entry} }

// ExpectedNext returns the legal follow-ups of last.
func ExpectedNext(last Code) []Code {
	if !last.Valid() {
		return ExpectedFirst()
	}
	return append([]Code(nil), next[last]...)
}

// IsExpected reports whether c is a legal follow-up of last.
func IsExpected(last, c Code) bool {
	for _, n := range ExpectedNext(last) {
		if n == c {
			return true
		}
	}
	return false
}
