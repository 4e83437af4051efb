package step

import (
	"cmp"
	"fmt"
	"runtime"
)

// Location is the source position where a step definition was registered.
type Location struct {
	Path   string
	Line   int
	Column int
}

// String formats the location as path:line:column.
func (l Location) String() string {
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.Path, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// Caller returns the location of the function skip frames above the caller of Caller.
// Caller(0) is the line that called Caller.
func Caller(skip int) *Location {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return nil
	}
	return &Location{Path: file, Line: line}
}

// compareLocations orders nil first, then by path, line and column.
func compareLocations(a, b *Location) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Or(
		cmp.Compare(a.Path, b.Path),
		cmp.Compare(a.Line, b.Line),
		cmp.Compare(a.Column, b.Column),
	)
}
