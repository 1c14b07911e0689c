package gates

import (
	"fmt"
	"strings"
)

// splitCommand tokenizes a verification command the way a POSIX shell would
// split a simple invocation: whitespace-separated words, single and double
// quotes grouping, backslash escaping outside single quotes. Unterminated
// quoting is an error.
func splitCommand(cmd string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inToken := false

	const (
		bare = iota
		single
		double
	)
	state := bare
	escaped := false

	for _, r := range cmd {
		switch {
		case escaped:
			current.WriteRune(r)
			inToken = true
			escaped = false
		case state == single:
			if r == '\'' {
				state = bare
			} else {
				current.WriteRune(r)
			}
		case r == '\\':
			escaped = true
		case state == double:
			if r == '"' {
				state = bare
			} else {
				current.WriteRune(r)
			}
		case r == '\'':
			state = single
			inToken = true
		case r == '"':
			state = double
			inToken = true
		case r == ' ' || r == '\t' || r == '\n':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}

	if escaped {
		return nil, fmt.Errorf("trailing backslash in command %q", cmd)
	}
	if state != bare {
		return nil, fmt.Errorf("unterminated quote in command %q", cmd)
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

// recognizedTools lists command heads the quality gate accepts as runnable
// verification entry points.
var recognizedTools = map[string]bool{
	"go":      true,
	"gotest":  true,
	"pytest":  true,
	"python":  true,
	"python3": true,
	"npm":     true,
	"npx":     true,
	"node":    true,
	"make":    true,
	"cargo":   true,
	"bash":    true,
	"sh":      true,
	"curl":    true,
	"grep":    true,
	"test":    true,
	"foreman": true,
}

// recognizedHead reports whether the command's first token is an accepted
// tool. Relative script paths (./run-checks.sh) are accepted.
func recognizedHead(tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	head := tokens[0]
	if strings.HasPrefix(head, "./") {
		return true
	}
	return recognizedTools[head]
}
