package postgresql

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dukex/leadflow/pkg/leads"
)

// whereBuilder translates a leads.Filter into a SQL predicate over the doc column.
// Field names and values are always bound as parameters.
type whereBuilder struct {
	args []any
}

func (b *whereBuilder) arg(v any) string {
	b.args = append(b.args, v)

	return fmt.Sprintf("$%d", len(b.args))
}

func (b *whereBuilder) jsonArg(v any) (string, error) {
	data, err := json.Marshal(leads.Normalize(v))
	if err != nil {
		return "", fmt.Errorf("%w: unencodable value %v", leads.ErrMalformedQuery, v)
	}

	return b.arg(string(data)) + "::jsonb", nil
}

func (b *whereBuilder) build(filter leads.Filter) (string, error) {
	if len(filter) == 0 {
		return "TRUE", nil
	}

	clauses := make([]string, 0, len(filter))

	for _, key := range slices.Sorted(maps.Keys(filter)) {
		clause, err := b.clause(key, filter[key])
		if err != nil {
			return "", err
		}

		clauses = append(clauses, clause)
	}

	return strings.Join(clauses, " AND "), nil
}

func (b *whereBuilder) clause(key string, cond any) (string, error) {
	if key == leads.OpAnd || key == leads.OpOr {
		return b.logical(key, cond)
	}

	field := b.arg(key) + "::text"

	ops, isOps := leads.OperatorDoc(cond)
	if !isOps {
		if cond == nil {
			return fmt.Sprintf("(doc->%s IS NULL OR doc->%s = 'null'::jsonb)", field, field), nil
		}

		value, err := b.jsonArg(cond)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("doc->%s = %s", field, value), nil
	}

	parts := make([]string, 0, len(ops))

	for _, op := range slices.Sorted(maps.Keys(ops)) {
		if op == leads.OpOptions {
			continue
		}

		part, err := b.operator(field, op, ops[op], ops)
		if err != nil {
			return "", err
		}

		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return "TRUE", nil
	}

	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func (b *whereBuilder) operator(field, op string, operand any, ops map[string]any) (string, error) {
	switch op {
	case leads.OpEq:
		value, err := b.jsonArg(operand)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("doc->%s = %s", field, value), nil
	case leads.OpNe:
		value, err := b.jsonArg(operand)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("doc->%s IS DISTINCT FROM %s", field, value), nil
	case leads.OpGt, leads.OpGte, leads.OpLt, leads.OpLte:
		return b.comparison(field, op, operand)
	case leads.OpIn, leads.OpNin:
		list, _ := operand.([]any)

		value, err := b.jsonArg(list)
		if err != nil {
			return "", err
		}

		in := fmt.Sprintf("(doc->%s IS NOT NULL AND %s @> jsonb_build_array(doc->%s))", field, value, field)
		if op == leads.OpIn {
			return in, nil
		}

		return "NOT COALESCE(" + in + ", FALSE)", nil
	case leads.OpRegex:
		pattern, _ := operand.(string)
		options, _ := ops[leads.OpOptions].(string)

		return fmt.Sprintf("(jsonb_typeof(doc->%s) = 'string' AND doc->>%s ~ %s)",
			field, field, b.arg(regexOptions(options)+pattern)), nil
	case leads.OpExists:
		if want, _ := operand.(bool); want {
			return fmt.Sprintf("doc ? %s", field), nil
		}

		return fmt.Sprintf("NOT (doc ? %s)", field), nil
	}

	return "", fmt.Errorf("%w: unsupported operator %s", leads.ErrMalformedQuery, op)
}

var comparisonSQL = map[string]string{
	leads.OpGt:  ">",
	leads.OpGte: ">=",
	leads.OpLt:  "<",
	leads.OpLte: "<=",
}

func (b *whereBuilder) comparison(field, op string, operand any) (string, error) {
	sqlOp := comparisonSQL[op]

	switch v := leads.Normalize(operand).(type) {
	case string:
		return fmt.Sprintf(`(jsonb_typeof(doc->%s) = 'string' AND doc->>%s COLLATE "C" %s %s::text)`,
			field, field, sqlOp, b.arg(v)), nil
	case float64:
		return fmt.Sprintf("(jsonb_typeof(doc->%s) = 'number' AND (doc->>%s)::numeric %s %s::numeric)",
			field, field, sqlOp, b.arg(v)), nil
	}

	return "FALSE", nil
}

func (b *whereBuilder) logical(key string, cond any) (string, error) {
	list, err := leads.LogicalClauses(key, cond)
	if err != nil {
		return "", err
	}

	if len(list) == 0 {
		if key == leads.OpAnd {
			return "TRUE", nil
		}

		return "FALSE", nil
	}

	joiner := " AND "
	if key == leads.OpOr {
		joiner = " OR "
	}

	parts := make([]string, 0, len(list))

	for _, sub := range list {
		part, err := b.build(sub)
		if err != nil {
			return "", err
		}

		parts = append(parts, "("+part+")")
	}

	return "(" + strings.Join(parts, joiner) + ")", nil
}

// regexOptions maps $options letters onto PostgreSQL ARE embedded options.
func regexOptions(options string) string {
	var flags strings.Builder

	for _, o := range options {
		switch o {
		case 'i':
			flags.WriteRune('i')
		case 'm':
			flags.WriteRune('n')
		case 's':
			flags.WriteRune('s')
		}
	}

	if flags.Len() == 0 {
		return ""
	}

	return "(?" + flags.String() + ")"
}
