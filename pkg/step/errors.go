package step

import (
	"fmt"
	"strings"

	"github.com/ariel-frischer/stepflow/pkg/feature"
)

// AmbiguousMatchError is returned by Find when a step matches more than one pattern.
type AmbiguousMatchError struct {
	Step feature.Step
	// Possible lists every matching pattern, sorted by pattern text then location.
	Possible []Pattern
}

// Error implements the error interface.
func (e *AmbiguousMatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "step %q matches %d definitions:", e.Step.String(), len(e.Possible))
	for _, p := range e.Possible {
		sb.WriteString("\n  ")
		sb.WriteString(p.String())
	}
	return sb.String()
}

// CollisionError is returned by MergeStrict and FromBuildersStrict when both sides
// define the same key.
type CollisionError struct {
	Collisions []Collision
	// Domains names the colliding step sets, when known.
	Domains []string
}

// Error implements the error interface.
func (e *CollisionError) Error() string {
	parts := make([]string, len(e.Collisions))
	for i, c := range e.Collisions {
		parts[i] = c.Kind.String() + " " + c.Key.Pattern
		if c.Key.HasLocation {
			parts[i] += " (" + c.Key.Location.String() + ")"
		}
	}
	msg := fmt.Sprintf("%d step definitions collide: %s", len(parts), strings.Join(parts, ", "))
	if len(e.Domains) > 0 {
		msg = "domains " + strings.Join(e.Domains, " and ") + ": " + msg
	}
	return msg
}
