// Package output provides rendering helpers for CLI commands. A Renderer
// wraps the command's stdout/stderr and an output mode so commands can
// produce either human-readable text or machine-readable JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Mode selects the output format.
type Mode string

const (
	// ModeText renders styled tables and key-value text.
	ModeText Mode = "text"
	// ModeJSON renders a single JSON document per command.
	ModeJSON Mode = "json"
)

// Renderer writes command output in the configured mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
}

// NewRenderer creates a renderer. An unrecognized mode falls back to text.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	if mode != ModeJSON {
		mode = ModeText
	}
	return &Renderer{out: out, errOut: errOut, mode: mode}
}

// Mode returns the renderer's output mode.
func (r *Renderer) Mode() Mode {
	return r.mode
}

// Out returns the underlying output writer.
func (r *Renderer) Out() io.Writer {
	return r.out
}

// Println writes a line to stdout.
func (r *Renderer) Println(args ...any) {
	_, _ = fmt.Fprintln(r.out, args...)
}

// Printf writes formatted output to stdout.
func (r *Renderer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Errorf writes formatted output to stderr.
func (r *Renderer) Errorf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.errOut, format, args...)
}

// Header writes a section header.
func (r *Renderer) Header(text string) {
	_, _ = fmt.Fprintf(r.out, "%s\n%s\n", text, strings.Repeat("-", len(text)))
}

// KeyValue writes an aligned key-value line.
func (r *Renderer) KeyValue(key string, value any) {
	_, _ = fmt.Fprintf(r.out, "  %-14s %v\n", key+":", value)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewTable returns a table writer targeting stdout with the house style.
func (r *Renderer) NewTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	return t
}
