package host

import (
	"fmt"

	"lumen/internal/ir"
	"lumen/internal/modules"
	"lumen/internal/value"
	"lumen/internal/vm"
)

// importer backs `import "path"`, compiled via compileImport to
// native("$import", path) with a single string argument. Lumen has no
// export/namespace system — importing a path compiles and runs it as its
// own top-level program and binds the *value* that program evaluates to
// (its trailing expression, the same thing RunMain returns for the entry
// module) to the import's alias. A module meant to be imported therefore
// ends in an expression yielding whatever it wants to expose — typically a
// map or tuple of the names it means to share — the same way a script run
// directly yields its own result.
type importer struct {
	execRoot string
	cache    *modules.Cache
	natives  map[string]vm.NativeFunc
}

func (im *importer) call(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null, fmt.Errorf("$import expects 1 argument, got %d", len(args))
	}
	if args[0].Kind != value.KindStr {
		return value.Null, fmt.Errorf("$import: path must be a string, got %s", args[0].Kind)
	}
	path := args[0].StrObj().S

	bc, err := resolveModule(im, path)
	if err != nil {
		return value.Null, err
	}
	result, err := vm.NewVM(im.natives).RunMain(bc)
	if err != nil {
		return value.Null, fmt.Errorf("$import %q: %w", path, err)
	}
	return result, nil
}

func resolveModule(im *importer, path string) (*ir.Bytecode, error) {
	if im.cache != nil {
		return im.cache.Resolve(im.execRoot, path)
	}
	return modules.CompileUncached(im.execRoot, path)
}
