package expr

import (
	"log/slog"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/ardnew/twine/lang/value"
)

// apply computes one operator over its operands.
//
//nolint:cyclop,funlen
func apply(op *Operator, args []any) (any, error) {
	switch op.Symbol {
	case "not":
		return !value.Truthy(args[0]), nil
	case opNegate.Symbol:
		return -value.ToNumber(lengthOf(args[0])), nil
	case opPlus.Symbol:
		return value.ToNumber(lengthOf(args[0])), nil

	case "?":
		if value.Truthy(args[0]) {
			return args[1], nil
		}

		return value.Arg(args, 2), nil //nolint:mnd

	case "?:":
		if value.Truthy(args[0]) {
			return args[0], nil
		}

		return args[1], nil

	case "??":
		if !value.IsNull(args[0]) {
			return args[0], nil
		}

		return args[1], nil

	case "in", "not in":
		found, defined := value.Contains(args[1], args[0])
		if op.Symbol == "in" {
			if !defined {
				return nil, nil
			}

			return found, nil
		}

		return !found, nil
	}

	// Every remaining operator sees sequence operands as their length.
	a, b := lengthOf(args[0]), lengthOf(args[1])

	switch op.Symbol {
	case "or":
		return value.Truthy(a) || value.Truthy(b), nil
	case "and":
		return value.Truthy(a) && value.Truthy(b), nil

	case "b-or":
		return value.ToInt(a) | value.ToInt(b), nil
	case "b-xor":
		return value.ToInt(a) ^ value.ToInt(b), nil
	case "b-and":
		return value.ToInt(a) & value.ToInt(b), nil

	case "==":
		return value.LooseEqual(a, b), nil
	case "!=":
		return !value.LooseEqual(a, b), nil
	case "===":
		return value.StrictEqual(a, b), nil
	case "!==":
		return !value.StrictEqual(a, b), nil

	case "<", "<=", ">", ">=":
		return compare(op.Symbol, a, b), nil

	case "matches":
		re, err := compileRegexp(value.ToString(b))
		if err != nil {
			return nil, err
		}

		return re.MatchString(value.ToString(a)), nil

	case "starts with":
		s, ok := text(a)

		return ok && strings.HasPrefix(s, value.ToString(b)), nil
	case "ends with":
		s, ok := text(a)

		return ok && strings.HasSuffix(s, value.ToString(b)), nil

	case "..":
		return Range(a, b, 1), nil

	case "~":
		return value.ToString(a) + value.ToString(b), nil
	}

	return arithmetic(op, value.ToNumber(a), value.ToNumber(b))
}

func arithmetic(op *Operator, x, y float64) (any, error) {
	switch op.Symbol {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		return x / y, nil
	case "//":
		return math.Floor(x / y), nil
	case "%":
		return math.Mod(x, y), nil
	case "**":
		return math.Pow(x, y), nil
	}

	return nil, ErrUnknownOperator.With(slog.String("operator", op.Symbol))
}

func compare(symbol string, a, b any) bool {
	c, ok := value.Compare(a, b)
	if !ok {
		return false
	}

	switch symbol {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	default:
		return c >= 0
	}
}

// lengthOf replaces a sequence with its element count.
func lengthOf(v any) any {
	if seq, ok := value.AsSequence(v); ok {
		return len(seq)
	}

	return v
}

func text(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case value.Markup:
		return string(s), true
	}

	return "", false
}

var (
	regexpCache sync.Map // pattern source -> *regexp.Regexp
	reDelimited = regexp.MustCompile(`^/(.*)/([a-zA-Z]*)$`)
)

// compileRegexp compiles a `/pattern/flags` literal, or a bare pattern.
// Flags i, m and s map to the matching inline flags; others are ignored.
func compileRegexp(src string) (*regexp.Regexp, error) {
	if re, ok := regexpCache.Load(src); ok {
		return re.(*regexp.Regexp), nil //nolint:forcetypeassert
	}

	pattern := src

	if m := reDelimited.FindStringSubmatch(src); m != nil {
		pattern = m[1]

		var flags strings.Builder

		for _, f := range m[2] {
			if strings.ContainsRune("ims", f) && !strings.ContainsRune(flags.String(), f) {
				flags.WriteRune(f)
			}
		}

		if flags.Len() > 0 {
			pattern = "(?" + flags.String() + ")" + pattern
		}
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, ErrInvalidRegexp.Wrap(err).With(slog.String("pattern", src))
	}

	regexpCache.Store(src, re)

	return re, nil
}
