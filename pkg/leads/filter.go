package leads

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/dukex/leadflow/pkg/models"
)

// Filter is a document filter in the Mongo query subset understood by every store:
// field equality, $eq $ne $gt $gte $lt $lte $in $nin $regex $options $exists on fields,
// and $and / $or at any document level.
type Filter map[string]any

// Field operators.
const (
	OpEq      = "$eq"
	OpNe      = "$ne"
	OpGt      = "$gt"
	OpGte     = "$gte"
	OpLt      = "$lt"
	OpLte     = "$lte"
	OpIn      = "$in"
	OpNin     = "$nin"
	OpRegex   = "$regex"
	OpOptions = "$options"
	OpExists  = "$exists"
	OpAnd     = "$and"
	OpOr      = "$or"
)

var fieldOperators = map[string]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpNin: true, OpRegex: true, OpOptions: true, OpExists: true,
}

// ParseFilter accepts a mapping or a string encoding a mapping and returns a validated Filter.
// Strings are decoded as JSON first and, failing that, as a single-quoted dict literal.
func ParseFilter(input any) (Filter, error) {
	var raw map[string]any

	switch v := input.(type) {
	case nil:
		return nil, malformed("query is required")
	case Filter:
		raw = v
	case map[string]any:
		raw = v
	case string:
		parsed, err := decodeFilterString(v)
		if err != nil {
			return nil, err
		}

		raw = parsed
	case []byte:
		parsed, err := decodeFilterString(string(v))
		if err != nil {
			return nil, err
		}

		raw = parsed
	default:
		return nil, malformed("query must be a mapping or a string encoding one, not %T", input)
	}

	filter := Filter(raw)
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	return filter, nil
}

func decodeFilterString(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, malformed("query string is empty")
	}

	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		if err := json.Unmarshal([]byte(dictLiteralToJSON(s)), &parsed); err != nil {
			return nil, malformed("could not parse %q", s)
		}
	}

	m, ok := parsed.(map[string]any)
	if !ok {
		return nil, malformed("%q does not encode a mapping", s)
	}

	return m, nil
}

// dictLiteralToJSON rewrites a single-quoted dict literal (True/False/None constants)
// into JSON. Content inside strings is preserved.
func dictLiteralToJSON(s string) string {
	var (
		b       strings.Builder
		quote   rune
		escaped bool
	)

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if quote != 0 {
			switch {
			case escaped:
				if r == '\'' {
					b.WriteRune('\'')
				} else {
					b.WriteRune('\\')
					b.WriteRune(r)
				}

				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				b.WriteRune('"')

				quote = 0
			case r == '"':
				b.WriteString(`\"`)
			default:
				b.WriteRune(r)
			}

			continue
		}

		switch {
		case r == '\'' || r == '"':
			quote = r

			b.WriteRune('"')
		case unicode.IsLetter(r):
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}

			word := string(runes[i:j])
			switch word {
			case "True":
				word = "true"
			case "False":
				word = "false"
			case "None":
				word = "null"
			}

			b.WriteString(word)

			i = j - 1
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Validate checks operator names and operand shapes.
func (f Filter) Validate() error {
	for key, cond := range f {
		if strings.HasPrefix(key, "$") {
			if err := validateLogical(key, cond); err != nil {
				return err
			}

			continue
		}

		ops, isOps := OperatorDoc(cond)
		if !isOps {
			continue
		}

		for op, operand := range ops {
			if !fieldOperators[op] {
				return malformed("unsupported operator %s on field %s", op, key)
			}

			switch op {
			case OpIn, OpNin:
				if _, ok := operand.([]any); !ok {
					return malformed("%s on field %s requires a list", op, key)
				}
			case OpRegex:
				pattern, ok := operand.(string)
				if !ok {
					return malformed("$regex on field %s requires a string", key)
				}

				options, _ := ops[OpOptions].(string)
				if _, err := compileRegex(pattern, options); err != nil {
					return malformed("invalid $regex on field %s: %v", key, err)
				}
			case OpOptions:
				if _, ok := operand.(string); !ok {
					return malformed("$options on field %s requires a string", key)
				}
			case OpExists:
				if _, ok := operand.(bool); !ok {
					return malformed("$exists on field %s requires a boolean", key)
				}
			}
		}
	}

	return nil
}

func validateLogical(key string, cond any) error {
	if key != OpAnd && key != OpOr {
		return malformed("unsupported top-level operator %s", key)
	}

	clauses, err := LogicalClauses(key, cond)
	if err != nil {
		return err
	}

	for _, clause := range clauses {
		if err := clause.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// LogicalClauses returns the sub-filters of an $and or $or clause.
func LogicalClauses(key string, cond any) ([]Filter, error) {
	list, ok := cond.([]any)
	if !ok {
		if filters, ok := cond.([]Filter); ok {
			return filters, nil
		}

		return nil, malformed("%s requires a list of filters", key)
	}

	clauses := make([]Filter, 0, len(list))

	for _, item := range list {
		m, ok := asMap(item)
		if !ok {
			return nil, malformed("%s requires a list of filters", key)
		}

		clauses = append(clauses, m)
	}

	return clauses, nil
}

// Match reports whether a document satisfies the filter.
func (f Filter) Match(doc map[string]any) bool {
	for key, cond := range f {
		if !matchClause(doc, key, cond) {
			return false
		}
	}

	return true
}

func matchClause(doc map[string]any, key string, cond any) bool {
	switch key {
	case OpAnd:
		clauses, _ := LogicalClauses(key, cond)
		for _, clause := range clauses {
			if !clause.Match(doc) {
				return false
			}
		}

		return true
	case OpOr:
		clauses, _ := LogicalClauses(key, cond)
		for _, clause := range clauses {
			if clause.Match(doc) {
				return true
			}
		}

		return false
	}

	value, present := doc[key]

	ops, isOps := OperatorDoc(cond)
	if !isOps {
		return present && equalValues(value, cond) || !present && cond == nil
	}

	for op, operand := range ops {
		if !matchOperator(value, present, op, operand, ops) {
			return false
		}
	}

	return true
}

func matchOperator(value any, present bool, op string, operand any, ops map[string]any) bool {
	switch op {
	case OpEq:
		return present && equalValues(value, operand)
	case OpNe:
		return !present || !equalValues(value, operand)
	case OpGt, OpGte, OpLt, OpLte:
		if !present {
			return false
		}

		cmp, ok := compareValues(value, operand)
		if !ok {
			return false
		}

		switch op {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case OpIn, OpNin:
		list, _ := operand.([]any)

		found := false

		for _, candidate := range list {
			if present && equalValues(value, candidate) {
				found = true

				break
			}
		}

		if op == OpIn {
			return found
		}

		return !found
	case OpRegex:
		s, ok := value.(string)
		if !present || !ok {
			return false
		}

		options, _ := ops[OpOptions].(string)
		pattern, _ := operand.(string)

		re, err := compileRegex(pattern, options)
		if err != nil {
			return false
		}

		return re.MatchString(s)
	case OpOptions:
		return true
	case OpExists:
		want, _ := operand.(bool)

		return present == want
	}

	return false
}

// RegexFlags converts $options letters into Go regexp inline flags.
func RegexFlags(options string) string {
	var flags strings.Builder

	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			flags.WriteRune(o)
		}
	}

	if flags.Len() == 0 {
		return ""
	}

	return "(?" + flags.String() + ")"
}

func compileRegex(pattern, options string) (*regexp.Regexp, error) {
	return regexp.Compile(RegexFlags(options) + pattern)
}

// OperatorDoc reports whether cond is an operator document such as {"$gt": 1}.
func OperatorDoc(cond any) (map[string]any, bool) {
	m, ok := asMap(cond)
	if !ok || len(m) == 0 {
		return nil, false
	}

	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}

	return m, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Filter:
		return m, true
	}

	return nil, false
}

// Normalize converts a value to the representation used for comparisons:
// numbers become float64, and timestamps, including RFC 3339 strings, take the
// fixed-width document form.
func Normalize(v any) any {
	switch n := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, n); err == nil {
			return models.FormatTimestamp(ts)
		}

		return n
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = Normalize(item)
		}

		return out
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return n.String()
		}

		return f
	case time.Time:
		return models.FormatTimestamp(n)
	case fmt.Stringer:
		return n.String()
	}

	return v
}

func equalValues(a, b any) bool {
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

func compareValues(a, b any) (int, bool) {
	a, b = Normalize(a), Normalize(b)

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}

		return strings.Compare(av, bv), true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}

		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	}

	return 0, false
}
