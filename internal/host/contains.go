package host

import (
	"fmt"

	"lumen/internal/value"
)

// contains backs `x in y`, compiled to native("$contains", container, item)
// with argument order (container, item) — see compileIn in the compiler
// package. Membership is defined across every container kind the language
// has, not just lists: tuples search by element, strings search for a
// substring (the item must itself be a string), maps search by key.
func contains(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Null, fmt.Errorf("$contains expects 2 arguments, got %d", len(args))
	}
	container, item := args[0], args[1]
	switch container.Kind {
	case value.KindList:
		for _, e := range container.ListObj().Elems {
			if value.Equal(e, item) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case value.KindTuple:
		for _, e := range container.TupleObj().Elems {
			if value.Equal(e, item) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case value.KindMap:
		_, ok := container.MapObj().Get(item)
		return value.Bool(ok), nil
	case value.KindStr:
		if item.Kind != value.KindStr {
			return value.Null, fmt.Errorf("$contains: cannot search a string for a %s", item.Kind)
		}
		runes := []rune(container.StrObj().S)
		needle := []rune(item.StrObj().S)
		return value.Bool(containsRunes(runes, needle)), nil
	default:
		return value.Null, fmt.Errorf("$contains: %s is not a container", container.Kind)
	}
}

func containsRunes(haystack, needle []rune) bool {
	if len(needle) == 0 {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
