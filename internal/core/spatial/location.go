package spatial

import (
	"strings"
)

// Resolution sources for location references
const (
	SourceUserContext     = "user_context"
	SourceFallback        = "fallback"
	SourceNamedLocation   = "named_location_not_stored"
	SourceUnrecognized    = "unrecognized"
	ReasonNoConsent       = "Location not available - user has not provided location consent"
	ReasonNamedNotStored  = "Named locations are not stored at this layer"
	ReasonNotUnderstood   = "Location reference not understood"
)

// LocationResolution is the outcome of resolving a location reference
type LocationResolution struct {
	Reference  string   `json:"reference"`
	Resolved   bool     `json:"resolved"`
	Context    *Context `json:"context,omitempty"`
	Confidence float64  `json:"confidence"`
	Source     string   `json:"source"`
	Reason     string   `json:"reason,omitempty"`
}

var hereRefs = []string{"current location", "this location", "here"}
var namedRefs = []string{"my place", "home", "office", "work"}

// ResolveLocation maps a reference like "here" onto the user's spatial
// context, honoring the consent flag; named places are out of scope here
func ResolveLocation(reference string, c Context) LocationResolution {
	lower := strings.ToLower(strings.TrimSpace(reference))

	for _, ref := range hereRefs {
		if !strings.Contains(lower, ref) {
			continue
		}
		if c.ExplicitConsent {
			ctx := c
			return LocationResolution{
				Reference:  ref,
				Resolved:   true,
				Context:    &ctx,
				Confidence: 0.9,
				Source:     SourceUserContext,
			}
		}
		return LocationResolution{
			Reference:  ref,
			Confidence: 0.2,
			Source:     SourceFallback,
			Reason:     ReasonNoConsent,
		}
	}

	for _, ref := range namedRefs {
		if strings.Contains(lower, ref) {
			return LocationResolution{
				Reference:  ref,
				Confidence: 0.1,
				Source:     SourceNamedLocation,
				Reason:     ReasonNamedNotStored,
			}
		}
	}

	return LocationResolution{
		Reference:  reference,
		Confidence: 0.1,
		Source:     SourceUnrecognized,
		Reason:     ReasonNotUnderstood,
	}
}

// PromptFragment renders the shareable slice of c for prompt grounding
// location only appears with explicit consent
func (c Context) PromptFragment() string {
	var parts []string
	if c.ExplicitConsent && c.Country != "" {
		place := c.Country
		if c.Region != "" {
			place = c.Region + ", " + c.Country
		} else if c.City != "" {
			place = c.City + ", " + c.Country
		}
		parts = append(parts, "User location: "+place)
	}
	if c.Language != "" {
		parts = append(parts, "Language preference: "+strings.ToUpper(c.Language))
	}
	return strings.Join(parts, "; ")
}
