package step

import (
	"cmp"
	"slices"

	"github.com/ariel-frischer/stepflow/pkg/feature"
)

// Merge returns the bucket-wise union of a and b.
// When both define the same (pattern, location) key, b's handler wins.
func Merge[W any](a, b Registry[W]) Registry[W] {
	var out Registry[W]
	for kind := range out.buckets {
		if len(a.buckets[kind]) == 0 {
			out.buckets[kind] = b.buckets[kind]
			continue
		}
		if len(b.buckets[kind]) == 0 {
			out.buckets[kind] = a.buckets[kind]
			continue
		}
		merged := make(bucket[W], len(a.buckets[kind])+len(b.buckets[kind]))
		for k, v := range a.buckets[kind] {
			merged[k] = v
		}
		for k, v := range b.buckets[kind] {
			merged[k] = v
		}
		out.buckets[kind] = merged
	}
	return out
}

// Compose merges registries left to right starting from an empty registry.
// Compose() is empty and Compose(a) is equivalent to a.
func Compose[W any](regs ...Registry[W]) Registry[W] {
	out := New[W]()
	for _, r := range regs {
		out = Merge(out, r)
	}
	return out
}

// Collision is a key defined in both operands of a merge.
type Collision struct {
	Kind feature.StepKind
	Key  Key
}

// Collisions lists the keys Merge(a, b) would silently override, in deterministic order.
func Collisions[W any](a, b Registry[W]) []Collision {
	var out []Collision
	for kind := range a.buckets {
		for k := range b.buckets[kind] {
			if _, ok := a.buckets[kind][k]; ok {
				out = append(out, Collision{Kind: feature.StepKind(kind), Key: k})
			}
		}
	}
	slices.SortFunc(out, func(x, y Collision) int {
		return cmp.Or(cmp.Compare(x.Kind, y.Kind), compareKeys(x.Key, y.Key))
	})
	return out
}

// MergeStrict is Merge that refuses to shadow definitions.
// It returns a *CollisionError listing every duplicated key instead.
func MergeStrict[W any](a, b Registry[W]) (Registry[W], error) {
	if c := Collisions(a, b); len(c) > 0 {
		return Registry[W]{}, &CollisionError{Collisions: c}
	}
	return Merge(a, b), nil
}

// Builder is implemented by domain-owned step sets so teams can register
// their definitions independently and compose them into one suite.
type Builder[W any] interface {
	// RegisterSteps adds the domain's definitions to r and returns the result.
	RegisterSteps(r Registry[W]) Registry[W]
	// Domain names the owning domain. FromBuildersStrict reports it on collisions.
	Domain() string
}

// ComposeBuilders threads an empty registry through each registration function in order.
func ComposeBuilders[W any](fns ...func(Registry[W]) Registry[W]) Registry[W] {
	out := New[W]()
	for _, fn := range fns {
		out = fn(out)
	}
	return out
}

// FromBuilders composes the registries produced by each builder.
func FromBuilders[W any](builders ...Builder[W]) Registry[W] {
	regs := make([]Registry[W], len(builders))
	for i, b := range builders {
		regs[i] = b.RegisterSteps(New[W]())
	}
	return Compose(regs...)
}

type domainSteps[W any] struct {
	domain string
	reg    Registry[W]
}

// FromBuildersStrict is FromBuilders that refuses to let one domain shadow another.
// The returned *CollisionError names the two domains that define the same keys.
func FromBuildersStrict[W any](builders ...Builder[W]) (Registry[W], error) {
	out := New[W]()
	seen := make([]domainSteps[W], 0, len(builders))

	for _, b := range builders {
		reg := b.RegisterSteps(New[W]())
		for _, prev := range seen {
			if c := Collisions(prev.reg, reg); len(c) > 0 {
				return Registry[W]{}, &CollisionError{
					Collisions: c,
					Domains:    []string{prev.domain, b.Domain()},
				}
			}
		}
		seen = append(seen, domainSteps[W]{domain: b.Domain(), reg: reg})
		out = Merge(out, reg)
	}
	return out, nil
}
