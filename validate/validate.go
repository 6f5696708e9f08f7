// Package validate holds the pure, dependency-free validation rules
// that gate every value before it is allowed anywhere near SQL
// construction — identifiers, ids, pagination, sort, and filter
// grammar. No function in this package performs I/O; all reject
// decisions are total functions of their input, matching the
// teacher's pattern of small stateless helpers.
package validate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrInvalidInput is wrapped by every rejection in this package so
// callers (the Router) can map it to the InvalidInput error kind with
// errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// Config bundles the limits enforced by this package, constructed
// once at startup (mirroring the teacher's constructed-once option
// pattern) rather than read from a process-global.
type Config struct {
	MaxIdentifierLength int
	MaxPageSize         int
}

func DefaultConfig() Config {
	return Config{MaxIdentifierLength: 64, MaxPageSize: 100}
}

// Identifier validates a table or column name.
func (c Config) Identifier(name string) error {
	if len(name) == 0 || len(name) > c.MaxIdentifierLength {
		return errors.Wrapf(ErrInvalidInput, "identifier length out of range: %q", name)
	}
	if !identRe.MatchString(name) {
		return errors.Wrapf(ErrInvalidInput, "malformed identifier: %q", name)
	}
	return nil
}

// ID validates the `id` query parameter value: a decimal integer >= 1, or a
// canonical 8-4-4-4-12 UUID.
func ID(raw string) (any, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n < 1 {
			return nil, errors.Wrapf(ErrInvalidInput, "id must be >= 1: %q", raw)
		}
		return n, nil
	}
	if u, err := uuid.Parse(raw); err == nil {
		return u.String(), nil
	}
	return nil, errors.Wrapf(ErrInvalidInput, "id is neither an integer nor a UUID: %q", raw)
}

// Page validates and defaults the `page` query parameter.
func Page(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.Wrapf(ErrInvalidInput, "page must be an integer >= 1: %q", raw)
	}
	return n, nil
}

// PageSize validates and defaults the `page_size` query parameter.
func (c Config) PageSize(raw string) (int, error) {
	if raw == "" {
		return 20, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > c.MaxPageSize {
		return 0, errors.Wrapf(ErrInvalidInput, "page_size must be in [1,%d]: %q", c.MaxPageSize, raw)
	}
	return n, nil
}

// Fields validates and de-duplicates a comma-separated field list,
// preserving first-seen order.
func (c Config) Fields(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if err := c.Identifier(f); err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

// SortTerm is one column with its requested direction.
type SortTerm struct {
	Column string
	Desc   bool
}

// Sort validates a comma-separated sort spec ("-col" for descending);
// duplicate columns are forbidden (distinct from Fields, which
// silently de-dupes).
func (c Config) Sort(raw string) ([]SortTerm, error) {
	if raw == "" {
		return nil, nil
	}
	seen := make(map[string]bool)
	var out []SortTerm
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		desc := false
		if strings.HasPrefix(s, "-") {
			desc = true
			s = s[1:]
		}
		if err := c.Identifier(s); err != nil {
			return nil, err
		}
		if seen[s] {
			return nil, errors.Wrapf(ErrInvalidInput, "duplicate sort column: %q", s)
		}
		seen[s] = true
		out = append(out, SortTerm{Column: s, Desc: desc})
	}
	return out, nil
}

// FilterOp is the closed set of filter operators.
type FilterOp string

const (
	OpEq      FilterOp = "eq"
	OpNeq     FilterOp = "neq"
	OpGt      FilterOp = "gt"
	OpGte     FilterOp = "gte"
	OpLt      FilterOp = "lt"
	OpLte     FilterOp = "lte"
	OpLike    FilterOp = "like"
	OpIn      FilterOp = "in"
	OpNotIn   FilterOp = "notin"
	OpNull    FilterOp = "null"
	OpNotNull FilterOp = "notnull"
)

var validOps = map[FilterOp]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpLike: true, OpIn: true, OpNotIn: true, OpNull: true, OpNotNull: true,
}

// FilterTerm is one validated `col:op:value` clause.
type FilterTerm struct {
	Column string
	Op     FilterOp
	Value  string   // single-value ops
	Values []string // in/notin
}

// Filter validates a comma-separated filter spec. Legacy two-part
// `col:value` is upgraded to `col:eq:value`, or `col:like:value` if
// value contains `%`. Per the source's documented ambiguity (colons
// embedded in a value are not distinguishable from part separators in
// the legacy form), callers needing a literal `:` in their value MUST
// use the explicit three-part form.
func (c Config) Filter(raw string) ([]FilterTerm, error) {
	if raw == "" {
		return nil, nil
	}
	var out []FilterTerm
	for _, clause := range splitTopLevel(raw) {
		term, err := c.filterTerm(clause)
		if err != nil {
			return nil, err
		}
		out = append(out, term)
	}
	return out, nil
}

func (c Config) filterTerm(clause string) (FilterTerm, error) {
	parts := strings.SplitN(clause, ":", 3)
	var column, opStr, value string
	switch len(parts) {
	case 2:
		column, value = parts[0], parts[1]
		opStr = string(OpEq)
		if strings.Contains(value, "%") {
			opStr = string(OpLike)
		}
	case 3:
		column, opStr, value = parts[0], parts[1], parts[2]
	default:
		return FilterTerm{}, errors.Wrapf(ErrInvalidInput, "malformed filter clause: %q", clause)
	}

	if err := c.Identifier(column); err != nil {
		return FilterTerm{}, err
	}
	op := FilterOp(opStr)
	if !validOps[op] {
		return FilterTerm{}, errors.Wrapf(ErrInvalidInput, "unknown filter operator: %q", opStr)
	}

	term := FilterTerm{Column: column, Op: op}
	switch op {
	case OpIn, OpNotIn:
		for _, v := range strings.Split(value, "|") {
			term.Values = append(term.Values, v)
		}
	case OpNull, OpNotNull:
		// value is ignored
	default:
		term.Value = value
	}
	return term, nil
}

// splitTopLevel splits a comma-separated filter spec on commas that
// are clause separators, not commas embedded inside an in/notin value
// list (which use `|` internally so this is a plain split).
func splitTopLevel(raw string) []string {
	return strings.Split(raw, ",")
}
