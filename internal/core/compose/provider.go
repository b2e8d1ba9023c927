package compose

import "strings"

// Style is where composed context lands relative to the user's prompt
type Style string

const (
	// StyleSystem returns the context as a system prompt
	StyleSystem Style = "system"
	// StylePrefix prepends the context to the prompt
	StylePrefix Style = "prefix"
	// StyleSuffix appends the context to the prompt
	StyleSuffix Style = "suffix"
	// StyleRaw returns the framed context alone
	StyleRaw Style = "raw"
)

// Valid reports whether s is a known style
func (s Style) Valid() bool {
	switch s {
	case StyleSystem, StylePrefix, StyleSuffix, StyleRaw:
		return true
	}
	return false
}

// framing wraps context text the way a provider's prompt conventions
// expect; unknown providers get the generic header
type framing struct {
	prefix string
	suffix string
}

var providerFramings = map[string]framing{
	"generic":    {prefix: "Current context for this user:\n"},
	"openai":     {prefix: "Current context for this user:\n"},
	"anthropic":  {prefix: "<context>\n", suffix: "\n</context>"},
	"google":     {prefix: "[User Context]\n", suffix: "\n[End Context]"},
	"perplexity": {prefix: "Context: "},
	"cohere":     {prefix: "## Context\n"},
	"mistral":    {prefix: "[CONTEXT]\n", suffix: "\n[/CONTEXT]"},
	"llama":      {prefix: "<<CONTEXT>>\n", suffix: "\n<</CONTEXT>>"},
}

// Providers lists the providers with dedicated framings
func Providers() []string {
	return []string{"generic", "openai", "anthropic", "google", "perplexity", "cohere", "mistral", "llama"}
}

// Frame wraps context text for a provider
func Frame(provider, contextText string) string {
	f, ok := providerFramings[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		f = providerFramings["generic"]
	}
	return f.prefix + contextText + f.suffix
}

// Inject places framed context per the style, returning the system
// prompt and the (possibly rewritten) user prompt
func Inject(style Style, prompt, framed string) (system, out string) {
	switch style {
	case StylePrefix:
		return "", framed + "\n\n" + prompt
	case StyleSuffix:
		return "", prompt + "\n\n" + framed
	case StyleRaw:
		return "", framed
	default:
		return framed, prompt
	}
}
