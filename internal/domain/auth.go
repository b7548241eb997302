package domain

// SubjectType differentiates users vs staff tokens.
type SubjectType string

const (
	SubjectTypeUser  SubjectType = "USER"
	SubjectTypeStaff SubjectType = "STAFF"
)

// Valid reports whether the subject type is one the API issues tokens for.
func (s SubjectType) Valid() bool {
	return s == SubjectTypeUser || s == SubjectTypeStaff
}
