// Package sqlident makes it structurally impossible to splice an
// untrusted string into generated SQL. In this module a QuotedIdent is
// constructed only through dialect.Quote, which rejects any identifier
// that fails its identifier pattern before calling New. A Param
// never touches SQL text directly; it is handed to the driver as a
// bound argument.
package sqlident

import "fmt"

// QuotedIdent is a table or column name that has already been validated
// and quoted for a specific SQL dialect. Query-building code accepts
// QuotedIdent for identifiers and bound arguments for values; the only
// constructor, New, is called solely by the dialect implementations,
// so client input reaches the identifier position only after
// dialect validation.
type QuotedIdent struct {
	raw     string
	quoted  string
	dialect string
}

// New mints a QuotedIdent. It is exported so package dialect can call
// it and performs no validation itself; its only callers are the
// dialect Quote implementations, which validate the identifier first.
func New(raw, quoted, dialect string) QuotedIdent {
	return QuotedIdent{raw: raw, quoted: quoted, dialect: dialect}
}

// Raw returns the original, unquoted identifier (for error messages
// and schema lookups, never for re-embedding into SQL text).
func (q QuotedIdent) Raw() string { return q.raw }

// SQL returns the dialect-quoted form suitable for direct concatenation
// into a SQL statement.
func (q QuotedIdent) SQL() string { return q.quoted }

func (q QuotedIdent) String() string { return q.quoted }

// Param is a named bound parameter. Name is only ever used as a
// placeholder key or generated positional marker; Value is passed to
// the driver, never interpolated into SQL text.
type Param struct {
	Name  string
	Value any
}

func (p Param) String() string {
	return fmt.Sprintf(":%s", p.Name)
}

// ParamSeq generates unique, collision-free parameter names for a
// column referenced multiple times in the same statement (e.g. the
// same column filtered twice), e.g. "age_0", "age_1".
type ParamSeq struct {
	counts map[string]int
}

func NewParamSeq() *ParamSeq {
	return &ParamSeq{counts: make(map[string]int)}
}

func (s *ParamSeq) Next(column string) string {
	n := s.counts[column]
	s.counts[column] = n + 1
	return fmt.Sprintf("%s_%d", column, n)
}
