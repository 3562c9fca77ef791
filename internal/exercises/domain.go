// Package exercises manages the coding-exercise catalog behind the /exercise
// endpoint. Reads are open to any authenticated caller; all writes are
// reserved for privileged roles.
package exercises

import "fmt"

// Type enumerates the exercise kinds. Values match the integer wire encoding
// of the exercise_type field.
type Type int

const (
	TypeGapText Type = iota + 1
	TypeSyntax
	TypeParsonsPuzzle
	TypeFindTheBug
	TypeDocumentation
	TypeOutput
	TypeProgramming
)

// ParseType converts a raw integer into a Type, rejecting out-of-range
// values.
func ParseType(v int) (Type, error) {
	if v < int(TypeGapText) || v > int(TypeProgramming) {
		return 0, fmt.Errorf("exercises: unknown exercise type %d", v)
	}
	return Type(v), nil
}

func (t Type) String() string {
	switch t {
	case TypeGapText:
		return "GapText"
	case TypeSyntax:
		return "Syntax"
	case TypeParsonsPuzzle:
		return "ParsonsPuzzle"
	case TypeFindTheBug:
		return "FindTheBug"
	case TypeDocumentation:
		return "Documentation"
	case TypeOutput:
		return "Output"
	case TypeProgramming:
		return "Programming"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Language enumerates the programming languages an exercise targets.
type Language int

const (
	LanguagePython Language = 1
	LanguageJava   Language = 2
)

// ParseLanguage converts a raw integer into a Language, rejecting
// out-of-range values.
func ParseLanguage(v int) (Language, error) {
	switch Language(v) {
	case LanguagePython, LanguageJava:
		return Language(v), nil
	default:
		return 0, fmt.Errorf("exercises: unknown exercise language %d", v)
	}
}

func (l Language) String() string {
	switch l {
	case LanguagePython:
		return "Python"
	case LanguageJava:
		return "Java"
	default:
		return fmt.Sprintf("Language(%d)", int(l))
	}
}

// Exercise represents a stored exercise. Solution holds the sample solution
// used for grading; read responses never include it.
type Exercise struct {
	ID          int64
	Title       string
	Description string
	Type        Type
	Content     string
	Solution    string
	Language    Language
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string
	Description *string
	Type        *Type
	Content     *string
	Solution    *string
	Language    *Language
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Type == nil &&
		p.Content == nil && p.Solution == nil && p.Language == nil
}

// Filter narrows an exercise query. Zero values mean "no constraint", except
// Limit, which is the page size: a limit of zero selects no rows.
type Filter struct {
	ID          int64
	Title       string
	Description string
	Type        *Type
	Language    *Language
	Offset      int
	Limit       int
}
