package step

import (
	"cmp"
	"context"
	"regexp"
	"regexp/syntax"
	"slices"

	"github.com/ariel-frischer/stepflow/pkg/feature"
)

// Handler executes one matched step against the scenario's world.
// A non-nil error (or a panic) marks the step failed.
type Handler[W any] func(ctx context.Context, world W, sc Context) error

// Pattern is a compiled step expression plus the optional location it was registered at.
type Pattern struct {
	Regexp   *regexp.Regexp
	Location *Location

	// full is Regexp anchored at both ends; steps must match their whole text.
	full *regexp.Regexp
}

// String returns the pattern source and location, if known.
func (p Pattern) String() string {
	if p.Location == nil {
		return p.Regexp.String()
	}
	return p.Regexp.String() + " (" + p.Location.String() + ")"
}

// Key identifies a definition within a bucket: pattern text plus location.
type Key struct {
	Pattern     string
	Location    Location
	HasLocation bool
}

func (p Pattern) key() Key {
	k := Key{Pattern: p.Regexp.String()}
	if p.Location != nil {
		k.Location = *p.Location
		k.HasLocation = true
	}
	return k
}

func comparePatterns(a, b Pattern) int {
	return compareKeys(a.key(), b.key())
}

// compareKeys orders by pattern text, then location with unlocated keys first.
func compareKeys(a, b Key) int {
	if c := cmp.Compare(a.Pattern, b.Pattern); c != 0 {
		return c
	}
	var la, lb *Location
	if a.HasLocation {
		la = &a.Location
	}
	if b.HasLocation {
		lb = &b.Location
	}
	return compareLocations(la, lb)
}

type definition[W any] struct {
	pattern Pattern
	handler Handler[W]
}

type bucket[W any] map[Key]definition[W]

// Registry maps (kind, pattern) to handlers.
//
// A Registry is an immutable value: Given, When and Then return an updated copy and never
// modify the receiver, so a finished registry can be shared by concurrent workers without
// locking. The zero value is an empty registry.
type Registry[W any] struct {
	buckets [3]bucket[W]
}

// New returns an empty registry.
func New[W any]() Registry[W] {
	return Registry[W]{}
}

// Given adds a Given definition.
func (r Registry[W]) Given(loc *Location, re *regexp.Regexp, h Handler[W]) Registry[W] {
	return r.with(feature.Given, loc, re, h)
}

// When adds a When definition.
func (r Registry[W]) When(loc *Location, re *regexp.Regexp, h Handler[W]) Registry[W] {
	return r.with(feature.When, loc, re, h)
}

// Then adds a Then definition.
func (r Registry[W]) Then(loc *Location, re *regexp.Regexp, h Handler[W]) Registry[W] {
	return r.with(feature.Then, loc, re, h)
}

// GivenRe compiles pattern and adds it as a Given definition located at the caller.
// It panics if pattern does not compile.
func (r Registry[W]) GivenRe(pattern string, h Handler[W]) Registry[W] {
	return r.with(feature.Given, Caller(1), regexp.MustCompile(pattern), h)
}

// WhenRe compiles pattern and adds it as a When definition located at the caller.
func (r Registry[W]) WhenRe(pattern string, h Handler[W]) Registry[W] {
	return r.with(feature.When, Caller(1), regexp.MustCompile(pattern), h)
}

// ThenRe compiles pattern and adds it as a Then definition located at the caller.
func (r Registry[W]) ThenRe(pattern string, h Handler[W]) Registry[W] {
	return r.with(feature.Then, Caller(1), regexp.MustCompile(pattern), h)
}

func (r Registry[W]) with(kind feature.StepKind, loc *Location, re *regexp.Regexp, h Handler[W]) Registry[W] {
	p := Pattern{
		Regexp:   re,
		Location: loc,
		full:     anchor(re),
	}

	old := r.buckets[kind]
	next := make(bucket[W], len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[p.key()] = definition[W]{pattern: p, handler: h}

	r.buckets[kind] = next
	return r
}

// anchor returns re matching only the whole input. The source is reparsed and
// reprinted first so constructs like an unterminated \Q cannot swallow the anchors.
func anchor(re *regexp.Regexp) *regexp.Regexp {
	syn, err := syntax.Parse(re.String(), syntax.Perl)
	if err != nil {
		// re already compiled under the same flags.
		panic("step: reparsing compiled pattern: " + err.Error())
	}
	return regexp.MustCompile(`^(?:` + syn.String() + `)$`)
}

// GivenLen returns the number of Given definitions.
func (r Registry[W]) GivenLen() int { return len(r.buckets[feature.Given]) }

// WhenLen returns the number of When definitions.
func (r Registry[W]) WhenLen() int { return len(r.buckets[feature.When]) }

// ThenLen returns the number of Then definitions.
func (r Registry[W]) ThenLen() int { return len(r.buckets[feature.Then]) }

// Len returns the total number of definitions.
func (r Registry[W]) Len() int {
	return r.GivenLen() + r.WhenLen() + r.ThenLen()
}

// Patterns returns every pattern of a kind in deterministic order.
func (r Registry[W]) Patterns(kind feature.StepKind) []Pattern {
	out := make([]Pattern, 0, len(r.buckets[kind]))
	for _, d := range r.buckets[kind] {
		out = append(out, d.pattern)
	}
	slices.SortFunc(out, comparePatterns)
	return out
}

// Capture is one (optional group name, captured text) pair.
type Capture struct {
	Name  string
	Value string
}

// Context is handed to a Handler: the step being run and the captured groups.
// Matches[0] always holds the whole step text. Optional groups that did not
// participate in the match hold an empty string.
type Context struct {
	Step    feature.Step
	Matches []Capture
}

// Arg returns the value of capture group i (1-based for groups, 0 for the whole match),
// or "" when out of range.
func (c Context) Arg(i int) string {
	if i < 0 || i >= len(c.Matches) {
		return ""
	}
	return c.Matches[i].Value
}

// Named returns the value of the named capture group.
func (c Context) Named(name string) (string, bool) {
	for _, m := range c.Matches {
		if m.Name != "" && m.Name == name {
			return m.Value, true
		}
	}
	return "", false
}

// Match is the single definition a step resolved to.
type Match[W any] struct {
	Handler Handler[W]
	Pattern Pattern
	Context Context
}

// Find resolves a step to its definition.
//
// It returns (nil, nil) when no pattern of the step's kind matches the whole step text,
// and an *AmbiguousMatchError when more than one does.
func (r Registry[W]) Find(s feature.Step) (*Match[W], error) {
	if s.Kind < feature.Given || s.Kind > feature.Then {
		return nil, nil
	}

	var (
		found   []definition[W]
		indices []int
	)
	for _, d := range r.buckets[s.Kind] {
		if loc := d.pattern.full.FindStringSubmatchIndex(s.Text); loc != nil {
			found = append(found, d)
			indices = loc
		}
	}

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
	default:
		possible := make([]Pattern, len(found))
		for i, d := range found {
			possible[i] = d.pattern
		}
		slices.SortFunc(possible, comparePatterns)
		return nil, &AmbiguousMatchError{Step: s, Possible: possible}
	}

	d := found[0]
	names := d.pattern.full.SubexpNames()
	matches := make([]Capture, len(names))
	for i, name := range names {
		start, end := indices[2*i], indices[2*i+1]
		value := ""
		if start >= 0 {
			value = s.Text[start:end]
		}
		matches[i] = Capture{Name: name, Value: value}
	}

	return &Match[W]{
		Handler: d.handler,
		Pattern: d.pattern,
		Context: Context{Step: s, Matches: matches},
	}, nil
}
