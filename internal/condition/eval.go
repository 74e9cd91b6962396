package condition

import (
	"math"
	"strconv"
	"strings"
)

// value is a resolved operand: either a number or a string.
type value struct {
	numeric bool
	num     float64
	str     string
}

func resolve(o Operand, st State) value {
	switch o.Kind {
	case OperandString:
		return value{str: o.Text}
	case OperandNumber:
		return value{numeric: true, num: o.Number}
	case OperandScene:
		return value{str: st.Scene()}
	default:
		return value{numeric: true, num: float64(st.Counter(o.Text))}
	}
}

// asNumber coerces a value to a number. Strings follow numeric-literal
// rules: blank is 0, anything unparsable is NaN (which fails every
// comparison except !=).
func (v value) asNumber() float64 {
	if v.numeric {
		return v.num
	}
	s := strings.TrimSpace(v.str)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func (v value) asString() string {
	if v.numeric {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.str
}

// compare applies op. If either side is numeric both are compared as
// numbers; otherwise only == and != are meaningful for strings.
func compare(left, right value, op Op) bool {
	if left.numeric || right.numeric {
		l, r := left.asNumber(), right.asNumber()
		switch op {
		case OpEq:
			return l == r
		case OpNe:
			return l != r
		case OpGe:
			return l >= r
		case OpLe:
			return l <= r
		case OpGt:
			return l > r
		case OpLt:
			return l < r
		}
		return false
	}

	switch op {
	case OpEq:
		return left.asString() == right.asString()
	case OpNe:
		return left.asString() != right.asString()
	}
	return false
}
