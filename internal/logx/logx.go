// Package logx wires the CLI's leveled log lines (the module-cache warning
// and the -v GC telemetry) through charmbracelet/log instead of bare
// fmt.Fprintf, the way the teacher never did but the rest of the retrieval
// pack's ecosystem does. Compile diagnostics and runtime tracebacks are
// printed with fmt and do not go through this package. Color output is
// gated on go-isatty so piping `lumen run` output to a file doesn't embed
// ANSI escapes.
package logx

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// New builds a logger writing to w. A terminal gets the colorized text
// formatter; a pipe or file gets plain logfmt, so `lumen run >out.log`
// never embeds ANSI escapes in the captured file.
func New(w io.Writer) *log.Logger {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: false,
		Level:           log.InfoLevel,
	})
	if tty {
		logger.SetFormatter(log.TextFormatter)
	} else {
		logger.SetFormatter(log.LogfmtFormatter)
	}
	return logger
}

// Default is the logger the CLI's log lines go through.
var Default = New(os.Stderr)

// SetVerbose raises Default to debug level, surfacing GC and module-cache
// telemetry that's otherwise suppressed.
func SetVerbose(v bool) {
	if v {
		Default.SetLevel(log.DebugLevel)
	} else {
		Default.SetLevel(log.InfoLevel)
	}
}

// GCStats logs the VM's current heap allocation counter in human-readable
// form (e.g. "384 kB" instead of a raw byte count) at debug level, so
// `lumen run -v` gives a sense of allocation pressure without dumping exact
// byte counts that'd just be noise to a script author.
func GCStats(heapBytes int) {
	Default.Debug("heap allocated", "bytes", humanize.Bytes(uint64(heapBytes)))
}
