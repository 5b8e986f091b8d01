package database

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnparameterized is returned for statements that embed values instead of
// binding them through named parameters.
var ErrUnparameterized = errors.New("statement is not parameterized")

// CheckParameterized refuses SQL that carries string literals, dollar-quoted
// bodies or positional $N placeholders. Values must be bound as @name
// arguments. Double-quoted identifiers and comments are skipped.
func CheckParameterized(sql string) error {
	inIdent := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]

		if inIdent {
			if c == '"' {
				inIdent = false
			}
			continue
		}

		switch c {
		case '"':
			inIdent = true
		case '-':
			if i+1 < len(sql) && sql[i+1] == '-' {
				for i < len(sql) && sql[i] != '\n' {
					i++
				}
			}
		case '/':
			if i+1 < len(sql) && sql[i+1] == '*' {
				end := strings.Index(sql[i+2:], "*/")
				if end < 0 {
					return fmt.Errorf("%w: unterminated comment", ErrUnparameterized)
				}
				i += end + 3
			}
		case '\'':
			return fmt.Errorf("%w: string literal at offset %d", ErrUnparameterized, i)
		case '$':
			if i+1 < len(sql) {
				next := sql[i+1]
				switch {
				case next >= '0' && next <= '9':
					return fmt.Errorf("%w: positional placeholder at offset %d", ErrUnparameterized, i)
				case next == '$' || isIdentStart(next):
					return fmt.Errorf("%w: dollar-quoted literal at offset %d", ErrUnparameterized, i)
				}
			}
		}
	}
	if inIdent {
		return fmt.Errorf("%w: unterminated identifier", ErrUnparameterized)
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
