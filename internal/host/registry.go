// Package host is the collection of natives a VM is handed at construction
// time: the functions reachable from Lumen source through `x in y`,
// `import "path"`, and explicit `native("name", args...)` calls. It
// generalizes the teacher's one-file-per-builtin registry
// (internal/runtime/builtins) into plain vm.NativeFunc values — no Env/IO/FS
// indirection layer is needed here, since vm.NativeFunc's
// func([]value.Value) (value.Value, error) signature already has no import
// cycle to dodge the way the teacher's interface{}-typed Call did.
package host

import (
	"lumen/internal/modules"
	"lumen/internal/vm"
)

// Registry builds the full native-function table for a VM running source
// rooted at execRoot, backed by cache for compiled-module memoization.
// cache may be nil, in which case `import` recompiles on every call.
func Registry(execRoot string, cache *modules.Cache) map[string]vm.NativeFunc {
	reg := map[string]vm.NativeFunc{
		"$contains":           contains,
		"strings.upper":       stringsUpper,
		"strings.lower":       stringsLower,
		"strings.trim":        stringsTrim,
		"strings.split":       stringsSplit,
		"strings.starts_with": stringsStartsWith,
		"strings.ends_with":   stringsEndsWith,
		"strings.index_of":    stringsIndexOf,
		"time.now_unix":       timeNowUnix,
		"uuid.new":            uuidNew,
		"db.query":            dbQuery,
	}
	im := &importer{execRoot: execRoot, cache: cache, natives: reg}
	reg["$import"] = im.call
	return reg
}
