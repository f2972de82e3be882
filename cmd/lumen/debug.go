//go:build lumendebug

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"lumen/internal/ir"
	"lumen/internal/lexer"
	"lumen/internal/modules"
	"lumen/internal/token"
)

var errUnknownCommand = errors.New("unknown command")

// runDebugCommand dispatches the four lumendebug-only subcommands, each a
// small inspection tool grounded on the fact that ir.Bytecode and
// token.Token already carry human-readable String() forms — these
// subcommands just walk and print them, the way a disassembler walks a
// binary's section table.
func runDebugCommand(cmd string, args []string) error {
	switch cmd {
	case "debug:dump":
		return cmdDebugDump(args)
	case "debug:tokens":
		return cmdDebugTokens(args)
	case "debug:write":
		return cmdDebugWrite(args)
	case "debug:read":
		return cmdDebugRead(args)
	default:
		return errUnknownCommand
	}
}

// cmdDebugDump compiles a source file and prints every function's
// instructions, one per line, alongside a blake2b content fingerprint and
// the module's BuildID.
func cmdDebugDump(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("debug:dump: missing input file")
	}
	source, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	bc, err := compileSource(args[0], string(source))
	if err != nil {
		return err
	}
	fmt.Printf("module %s (build %s, fingerprint %s)\n", args[0], bc.BuildID, modules.Fingerprint(source))
	for fi, fn := range bc.Functions {
		marker := ""
		if fi == bc.MainIndex {
			marker = " (main)"
		}
		fmt.Printf("\nfunc %s/%d%s\n", fn.Name, fn.Params, marker)
		for _, idx := range fn.Body {
			fmt.Printf("  %4d  %-20s data=%#x\n", idx, bc.Code.Op[idx], bc.Code.Data[idx])
		}
	}
	return nil
}

// cmdDebugTokens lexes a source file and prints its raw token stream,
// stopping at EOF.
func cmdDebugTokens(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("debug:tokens: missing input file")
	}
	source, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	l := lexer.New(string(source))
	for {
		tok := l.NextToken()
		fmt.Printf("%s  %s\n", tok.Pos, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return nil
}

// cmdDebugWrite compiles source and writes the §6 on-disk bytecode format
// directly (bypassing the module cache), for inspecting the serialized
// shape without a SQLite envelope wrapped around it.
func cmdDebugWrite(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("debug:write: usage: debug:write <in.lm> <out.lmc>")
	}
	source, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	bc, err := compileSource(args[0], string(source))
	if err != nil {
		return err
	}
	f, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := ir.Write(w, bc); err != nil {
		return err
	}
	return w.Flush()
}

// cmdDebugRead reads a previously-written .lmc file and prints its function
// table, without recompiling anything.
func cmdDebugRead(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("debug:read: missing .lmc file")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	bc, err := ir.Read(bufio.NewReader(f))
	if err != nil {
		return err
	}
	fmt.Printf("build %s, %d functions, main=%d\n", bc.BuildID, len(bc.Functions), bc.MainIndex)
	for fi, fn := range bc.Functions {
		fmt.Printf("  [%d] %s/%d (%d instructions)\n", fi, fn.Name, fn.Params, len(fn.Body))
	}
	return nil
}
