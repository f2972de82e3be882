// Command lumen is the Lumen language CLI: compile-and-run source files
// through the register VM. Shaped after the teacher's cmd/avenir — a
// handful of subcommands dispatched by hand off os.Args, with run's one
// flag (-v) matched by hand as well rather than through a flag package or a
// third-party cobra/cli framework, since the teacher never reached for one
// either.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"lumen/internal/compiler"
	"lumen/internal/config"
	"lumen/internal/host"
	"lumen/internal/ir"
	"lumen/internal/lexer"
	"lumen/internal/logx"
	"lumen/internal/modules"
	"lumen/internal/parser"
	"lumen/internal/value"
	"lumen/internal/vm"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		if err := cmdRun(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "fmt":
		if err := cmdFmt(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		usage()
	case "version", "-v", "--version":
		fmt.Println("lumen", version)
	default:
		if err := runDebugCommand(os.Args[1], os.Args[2:]); err != nil {
			if err == errUnknownCommand {
				fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
				usage()
				os.Exit(1)
			}
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}
}

func usage() {
	fmt.Println(`Lumen language CLI

Usage:
  lumen run <file.lm> [-v]
  lumen fmt <file.lm>

Commands:
  version  Lumen language version
  run      Compile and run a .lm source file
  fmt      Parse a .lm file and check it's well-formed, echoing it back
  help     Show this message

Flags (run):
  -v    Verbose: log GC and module-cache telemetry to stderr`)
}

// cmdRun compiles input and runs it to completion, reporting an unhandled
// raise as a traceback rather than a bare Go error. The input file itself is
// compiled directly; the module cache named by the project's lumen.toml
// serves only the program's imports.
func cmdRun(args []string) error {
	verbose := false
	var files []string
	for _, a := range args {
		if a == "-v" {
			verbose = true
			continue
		}
		files = append(files, a)
	}
	if len(files) < 1 {
		return fmt.Errorf("run: missing input file")
	}
	input := files[0]
	logx.SetVerbose(verbose)

	absInput, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	execRoot := filepath.Dir(absInput)

	cfg, err := config.Load(execRoot)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	source, err := os.ReadFile(absInput)
	if err != nil {
		return err
	}

	bc, err := compileSource(absInput, string(source))
	if err != nil {
		return err
	}

	cache, err := modules.Open(cfg.CacheDir)
	if err != nil {
		logx.Default.Warn("module cache unavailable, imports will recompile every run", "err", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	natives := host.Registry(execRoot, cache)
	m := vm.NewVM(natives)
	result, err := m.RunMain(bc)
	logx.GCStats(m.HeapBytes())
	if err != nil {
		return err
	}
	if result.Kind != value.KindNull {
		fmt.Println(result.String())
	}
	return nil
}

// cmdFmt parses input and, if it's well-formed, echoes the source back
// unchanged. It's a stand-in for a real pretty-printer: normalizing
// whitespace/indentation isn't part of what this CLI promises yet, only
// that a file accepted by `fmt` is known to parse cleanly.
func cmdFmt(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("fmt: missing input file")
	}
	input := args[0]
	source, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	l := lexer.New(string(source))
	p := parser.New(l)
	p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("fmt: %d parse errors", len(errs))
	}
	os.Stdout.Write(source)
	return nil
}

func compileSource(path, source string) (*ir.Bytecode, error) {
	l := lexer.New(source)
	p := parser.New(l)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return nil, fmt.Errorf("%d parse errors", len(errs))
	}
	bc, diags := compiler.Compile(path, source, prog)
	if !diags.Empty() {
		for _, d := range diags.Items() {
			fmt.Fprintln(os.Stderr, d)
		}
		return nil, fmt.Errorf("%d compile errors", len(diags.Items()))
	}
	return bc, nil
}
