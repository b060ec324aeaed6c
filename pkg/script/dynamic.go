// Package script resolves configuration values that may be computed per
// message.
//
// A DynamicString is either a plain static value such as "orders" or an
// expression wrapped in #[ ... ], for example "#[ .attributes.properties.replyTo ]".
// Expressions are resolved by an Evaluator against the message being
// processed; TemplateEvaluator is the built-in implementation.
package script

import "strings"

const (
	scriptPrefix = "#["
	scriptSuffix = "]"
)

// DynamicString is a static string or a #[ ... ] expression.
type DynamicString string

// IsScript reports whether d is an expression.
func (d DynamicString) IsScript() bool {
	s := strings.TrimSpace(string(d))
	return strings.HasPrefix(s, scriptPrefix) && strings.HasSuffix(s, scriptSuffix)
}

// IsBlank reports whether d is empty or whitespace only.
func (d DynamicString) IsBlank() bool {
	return strings.TrimSpace(string(d)) == ""
}

// Body returns the expression between #[ and ], trimmed. For static values
// it returns the value unchanged.
func (d DynamicString) Body() string {
	if !d.IsScript() {
		return string(d)
	}
	s := strings.TrimSpace(string(d))
	return strings.TrimSpace(s[len(scriptPrefix) : len(s)-len(scriptSuffix)])
}

func (d DynamicString) String() string {
	return string(d)
}
