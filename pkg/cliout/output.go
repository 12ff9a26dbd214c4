package cliout

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

// Printer handles terminal output with slate-themed styling for rpcswitchctl.
type Printer struct {
	out    io.Writer
	logger *log.Logger
	isTTY  bool
}

// New creates a Printer writing to stdout with the slate theme.
func New() *Printer {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a Printer with a custom writer.
func NewWithWriter(w io.Writer) *Printer {
	isTTY := isTerminal(w)

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})

	if isTTY {
		logger.SetStyles(slateStyles())
	}

	return &Printer{out: w, logger: logger, isTTY: isTTY}
}

// isTerminal checks if the writer is a TTY (for color support).
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

func (p *Printer) Info(msg string, keyvals ...any)  { p.logger.Info(msg, keyvals...) }
func (p *Printer) Warn(msg string, keyvals ...any)  { p.logger.Warn(msg, keyvals...) }
func (p *Printer) Error(msg string, keyvals ...any) { p.logger.Error(msg, keyvals...) }
func (p *Printer) Debug(msg string, keyvals ...any) { p.logger.Debug(msg, keyvals...) }

// SetDebug enables debug-level logging.
func (p *Printer) SetDebug(enabled bool) {
	if enabled {
		p.logger.SetLevel(log.DebugLevel)
	} else {
		p.logger.SetLevel(log.InfoLevel)
	}
}

// Print writes a message directly to output without formatting.
func (p *Printer) Print(format string, args ...any) { fmt.Fprintf(p.out, format, args...) }

// Println writes a message with newline directly to output.
func (p *Printer) Println(args ...any) { fmt.Fprintln(p.out, args...) }
