package schema

import (
	"fmt"
	"strings"
)

// Issue is a single violated constraint in the tunnel configuration document.
type Issue struct {
	Path    string
	Message string
}

func (issue Issue) String() string {
	if issue.Path == "" {
		return issue.Message
	}
	return fmt.Sprintf("%s: %s", issue.Path, issue.Message)
}

// ValidationError lists every constraint the configuration document violates.
type ValidationError struct {
	Issues []Issue
}

func (err *ValidationError) Error() string {
	if len(err.Issues) == 1 {
		return "invalid tunnel configuration: " + err.Issues[0].String()
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "invalid tunnel configuration (%d issues):", len(err.Issues))
	for _, issue := range err.Issues {
		builder.WriteString("\n  - ")
		builder.WriteString(issue.String())
	}
	return builder.String()
}

// HasPath reports whether an issue was recorded for path.
func (err *ValidationError) HasPath(path string) bool {
	for _, issue := range err.Issues {
		if issue.Path == path {
			return true
		}
	}
	return false
}
