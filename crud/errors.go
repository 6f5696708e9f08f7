package crud

import "strings"

// isConstraintViolation does a best-effort driver-agnostic sniff for
// unique/foreign-key constraint errors (MySQL error 1062/1452,
// Postgres SQLSTATE 23505/23503) without importing either driver's
// error package here — CrudEngine only depends on gorm + the pooled
// *sql.DB, not the vendor driver types directly.
func isConstraintViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "1062"), strings.Contains(msg, "duplicate entry"):
		return true
	case strings.Contains(msg, "1452"), strings.Contains(msg, "foreign key constraint"):
		return true
	case strings.Contains(msg, "23505"), strings.Contains(msg, "unique constraint"):
		return true
	case strings.Contains(msg, "23503"), strings.Contains(msg, "violates foreign key"):
		return true
	default:
		return false
	}
}
