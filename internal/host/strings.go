// String natives reachable from Lumen source via
// native("strings.upper", s), and so on — grounded on the teacher's
// internal/runtime/builtins/strings package, one function per file there,
// collapsed here into plain vm.NativeFunc values with the same argument
// validation texture but none of the Meta/registry ceremony a receiver-type
// method system would need, since Lumen has no user-extensible method
// dispatch beyond the VM's own opcode-backed builtins.
package host

import (
	"fmt"
	"strings"

	"lumen/internal/value"
)

func stringArg(args []value.Value, i int, fn string) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%s: expected argument %d", fn, i)
	}
	if args[i].Kind != value.KindStr {
		return "", fmt.Errorf("%s: argument %d must be a string, got %s", fn, i, args[i].Kind)
	}
	return args[i].StrObj().S, nil
}

func stringsUpper(args []value.Value) (value.Value, error) {
	s, err := stringArg(args, 0, "strings.upper")
	if err != nil {
		return value.Null, err
	}
	return value.Str(value.NewStr(strings.ToUpper(s))), nil
}

func stringsLower(args []value.Value) (value.Value, error) {
	s, err := stringArg(args, 0, "strings.lower")
	if err != nil {
		return value.Null, err
	}
	return value.Str(value.NewStr(strings.ToLower(s))), nil
}

func stringsTrim(args []value.Value) (value.Value, error) {
	s, err := stringArg(args, 0, "strings.trim")
	if err != nil {
		return value.Null, err
	}
	return value.Str(value.NewStr(strings.TrimSpace(s))), nil
}

func stringsStartsWith(args []value.Value) (value.Value, error) {
	s, err := stringArg(args, 0, "strings.starts_with")
	if err != nil {
		return value.Null, err
	}
	prefix, err := stringArg(args, 1, "strings.starts_with")
	if err != nil {
		return value.Null, err
	}
	return value.Bool(strings.HasPrefix(s, prefix)), nil
}

func stringsEndsWith(args []value.Value) (value.Value, error) {
	s, err := stringArg(args, 0, "strings.ends_with")
	if err != nil {
		return value.Null, err
	}
	suffix, err := stringArg(args, 1, "strings.ends_with")
	if err != nil {
		return value.Null, err
	}
	return value.Bool(strings.HasSuffix(s, suffix)), nil
}

func stringsIndexOf(args []value.Value) (value.Value, error) {
	s, err := stringArg(args, 0, "strings.index_of")
	if err != nil {
		return value.Null, err
	}
	substr, err := stringArg(args, 1, "strings.index_of")
	if err != nil {
		return value.Null, err
	}
	idx := strings.Index(s, substr)
	if idx < 0 {
		return value.Int(-1), nil
	}
	// Lumen indexes strings by rune, not byte, so re-express a byte offset
	// as a rune count the way indexing and iteration already do.
	return value.Int(int64(len([]rune(s[:idx])))), nil
}

func stringsSplit(args []value.Value) (value.Value, error) {
	s, err := stringArg(args, 0, "strings.split")
	if err != nil {
		return value.Null, err
	}
	sep, err := stringArg(args, 1, "strings.split")
	if err != nil {
		return value.Null, err
	}
	parts := strings.Split(s, sep)
	elems := make([]value.Value, len(parts))
	for i, p := range parts {
		elems[i] = value.Str(value.NewStr(p))
	}
	return value.List(value.NewList(elems)), nil
}
