// Package tags evaluates boolean tag expressions such as "@serial and not @slow".
package tags

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	tagexpressions "github.com/cucumber/tag-expressions/go/v6"
)

// Expr is a compiled tag expression. The zero value and a nil *Expr match every tag set.
type Expr struct {
	source string
	eval   tagexpressions.Evaluatable
}

// Parse compiles a tag expression. An empty or blank expression matches everything.
func Parse(expr string) (*Expr, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Expr{}, nil
	}

	eval, err := tagexpressions.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing tag expression %q: %w", expr, err)
	}
	return &Expr{source: expr, eval: eval}, nil
}

// MustParse is like Parse but panics on a malformed expression.
func MustParse(expr string) *Expr {
	e, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return e
}

// Match reports whether the tag set satisfies the expression.
func (e *Expr) Match(tags []string) bool {
	if e == nil || e.eval == nil {
		return true
	}
	return e.eval.Evaluate(tags)
}

// String returns the expression source, empty for the match-all expression.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.source
}

// IsEmpty reports whether the expression matches every tag set.
func (e *Expr) IsEmpty() bool {
	return e == nil || e.eval == nil
}

// retryTagRe matches @retry, @retry(3) and @retry(3).after(5s).
var retryTagRe = regexp.MustCompile(`^@retry(?:\((\d+)\))?(?:\.after\(([^)]+)\))?$`)

// RetryTag is the parsed form of a scenario's @retry tag.
type RetryTag struct {
	// Count is the number of retries, -1 when the tag did not specify one.
	Count int
	// After is the delay between attempts, 0 when unspecified.
	After time.Duration
}

// FindRetry returns the first @retry tag in the set.
func FindRetry(tagSet []string) (RetryTag, bool, error) {
	for _, t := range tagSet {
		m := retryTagRe.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		rt := RetryTag{Count: -1}
		if m[1] != "" {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return RetryTag{}, false, fmt.Errorf("tag %s: %w", t, err)
			}
			rt.Count = n
		}
		if m[2] != "" {
			d, err := time.ParseDuration(m[2])
			if err != nil {
				return RetryTag{}, false, fmt.Errorf("tag %s: %w", t, err)
			}
			rt.After = d
		}
		return rt, true, nil
	}
	return RetryTag{}, false, nil
}
