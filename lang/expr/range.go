package expr

import (
	"math"
	"unicode/utf8"

	"github.com/ardnew/twine/lang/value"
)

// Range returns the inclusive sequence from low to high, counting down when
// high is below low. Two single non-digit characters produce a character
// range; anything else is numeric. Integral bounds and step yield ints.
func Range(low, high any, step float64) []any {
	step = math.Abs(step)
	if step == 0 || math.IsNaN(step) {
		step = 1
	}

	if lo, hi, ok := charBounds(low, high); ok {
		return charRange(lo, hi, int(math.Max(1, math.Floor(step))))
	}

	lo, hi := value.ToNumber(low), value.ToNumber(high)
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return []any{}
	}

	integral := lo == math.Trunc(lo) && hi == math.Trunc(hi) && step == math.Trunc(step)

	dir := 1.0
	if hi < lo {
		dir = -1
	}

	n := int(math.Floor(math.Abs(hi-lo)/step)) + 1
	seq := make([]any, 0, n)

	for i := range n {
		f := lo + dir*step*float64(i)
		if integral {
			seq = append(seq, int(f))
		} else {
			seq = append(seq, f)
		}
	}

	return seq
}

func charBounds(low, high any) (rune, rune, bool) {
	a, ok := text(low)
	if !ok || utf8.RuneCountInString(a) != 1 {
		return 0, 0, false
	}

	b, ok := text(high)
	if !ok || utf8.RuneCountInString(b) != 1 {
		return 0, 0, false
	}

	lo, _ := utf8.DecodeRuneInString(a)
	hi, _ := utf8.DecodeRuneInString(b)

	if isDigit(lo) && isDigit(hi) {
		return 0, 0, false
	}

	return lo, hi, true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func charRange(lo, hi rune, step int) []any {
	dir := rune(1)
	if hi < lo {
		dir = -1
	}

	var seq []any

	for r := lo; (dir > 0 && r <= hi) || (dir < 0 && r >= hi); r += dir * rune(step) {
		seq = append(seq, string(r))
	}

	return seq
}
