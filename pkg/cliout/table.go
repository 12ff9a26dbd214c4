package cliout

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// NewTable returns a go-pretty table writer set up with the slate theme's
// box-drawing style, writing to w.
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}
