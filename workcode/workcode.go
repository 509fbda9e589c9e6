/*
Package workcode defines the six movement codes a biometric terminal can
report and validates the order in which they appear during a day.

CODES (wire value in parentheses):
  ENTRY (0)        start of the working day
  EXIT (1)         end of the working day
  BREAK_START (2)  leaves the post for a short break
  BREAK_END (3)    back from the break
  LUNCH_START (4)  leaves for lunch
  LUNCH_END (5)    back from lunch

SEQUENCING:
  Every code names the codes that must have appeared earlier in the day for
  it to make sense (its required predecessors). A day must open with ENTRY.
  Violations are advisory: ValidateSequence never fails, it reports.

SEE ALSO:
  - sequence.go: ValidateSequence and ExpectedNext
  - biometric/processor.go: feeds deduplicated codes into the validator
*/
package workcode

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/warp/attendance-engine/core"
)

// Code is a movement type reported by a punch.
type Code int

const (
	Entry Code = iota
	Exit
	BreakStart
	BreakEnd
	LunchStart
	LunchEnd

	numCodes
)

// All lists every code in wire order.
func All() []Code {
	return []Code{Entry, Exit, BreakStart, BreakEnd, LunchStart, LunchEnd}
}

// Info is the static description of a code.
type Info struct {
	Name                 string
	Description          string
	Color                string
	IsEntry              bool
	IsExit               bool
	IsBreak              bool
	Priority             int // 1 = main movement, 2 = break/lunch
	RequiredPredecessors []Code
}

// afterWork are the codes that leave the employee on the clock.
var afterWork = []Code{Entry, BreakEnd, LunchEnd}

var table = [numCodes]Info{
	Entry: {
		Name: "ENTRY", Description: "Entrada", Color: "#2e7d32",
		IsEntry: true, Priority: 1,
	},
	Exit: {
		Name: "EXIT", Description: "Salida", Color: "#c62828",
		IsExit: true, Priority: 1, RequiredPredecessors: afterWork,
	},
	BreakStart: {
		Name: "BREAK_START", Description: "Inicio de descanso", Color: "#f9a825",
		IsExit: true, IsBreak: true, Priority: 2, RequiredPredecessors: afterWork,
	},
	BreakEnd: {
		Name: "BREAK_END", Description: "Fin de descanso", Color: "#f57f17",
		IsEntry: true, IsBreak: true, Priority: 2, RequiredPredecessors: []Code{BreakStart},
	},
	LunchStart: {
		Name: "LUNCH_START", Description: "Inicio de almuerzo", Color: "#1565c0",
		IsExit: true, IsBreak: true, Priority: 2, RequiredPredecessors: afterWork,
	},
	LunchEnd: {
		Name: "LUNCH_END", Description: "Fin de almuerzo", Color: "#0d47a1",
		IsEntry: true, IsBreak: true, Priority: 2, RequiredPredecessors: []Code{LunchStart},
	},
}

// Parse converts a wire value into a Code.
func Parse(v int) (Code, error) {
	c := Code(v)
	if !c.Valid() {
		return 0, core.Invalid("work_code", v, "must be between 0 and 5")
	}
	return c, nil
}

// ParseName accepts the upper-case names ("LUNCH_START") case-insensitively.
func ParseName(name string) (Code, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for _, c := range All() {
		if table[c].Name == n {
			return c, nil
		}
	}
	return 0, core.Invalid("work_code", name, "unknown work code")
}

func (c Code) Valid() bool { return c >= Entry && c < numCodes }

// Info returns the static description. Panics on an invalid code; callers
// validate at the boundary with Parse.
func (c Code) Info() Info {
	if !c.Valid() {
		panic(fmt.Sprintf("workcode: invalid code %d", int(c)))
	}
	return table[c]
}

func (c Code) IsEntry() bool { return c.Valid() && table[c].IsEntry }
func (c Code) IsExit() bool { return c.Valid() && table[c].IsExit }
func (c Code) IsBreak() bool { return c.Valid() && table[c].IsBreak }
func (c Code) IsLunch() bool { return c == LunchStart || c == LunchEnd }
func (c Code) Priority() int { return c.Info().Priority }
func (c Code) Predecessors() []Code {
	return append([]Code(nil), c.Info().RequiredPredecessors...)
}

func (c Code) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Code(%d)", int(c))
	}
	return table[c].Name
}

// MarshalText encodes the code by name.
func (c Code) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, core.Invalid("work_code", int(c), "unknown work code")
	}
	return []byte(c.String()), nil
}

// UnmarshalText accepts either a name or a wire number.
func (c *Code) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if n, err := strconv.Atoi(s); err == nil {
		parsed, err := Parse(n)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	parsed, err := ParseName(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UnmarshalJSON accepts 4, "4" and "LUNCH_START". Terminals send numbers.
func (c *Code) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return c.UnmarshalText([]byte(s))
	}
	return c.UnmarshalText(b)
}

// Names renders a list as "ENTRY, BREAK_END".
func Names(codes []Code) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}
