// Package output renders command results as styled text or JSON.
// Styling is applied only when stdout is a terminal with color support,
// so piped output stays clean.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects the rendering format.
type Mode string

// Rendering modes.
const (
	ModeText Mode = "text"
	ModeJSON Mode = "json"
)

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	styled bool

	header   lipgloss.Style
	success  lipgloss.Style
	warn     lipgloss.Style
	errStyle lipgloss.Style
	muted    lipgloss.Style
}

// NewRenderer creates a renderer for the given writers and mode.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	r := &Renderer{out: out, errOut: errOut, mode: mode}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.styled = termenv.EnvColorProfile() != termenv.Ascii
	}
	if r.styled {
		r.header = lipgloss.NewStyle().Bold(true)
		r.success = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
		r.warn = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
		r.errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
		r.muted = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	}
	return r
}

// Mode returns the rendering mode.
func (r *Renderer) Mode() Mode { return r.mode }

// Writer returns the output writer, for encoders that write directly.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the error writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Println writes a line to the output writer.
func (r *Renderer) Println(a ...any) {
	fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to the output writer.
func (r *Renderer) Printf(format string, a ...any) {
	fmt.Fprintf(r.out, format, a...)
}

// Header writes a bold section heading.
func (r *Renderer) Header(text string) {
	fmt.Fprintln(r.out, r.header.Render(text))
}

// Successf writes a success line.
func (r *Renderer) Successf(format string, a ...any) {
	fmt.Fprintln(r.out, r.success.Render("✓")+" "+fmt.Sprintf(format, a...))
}

// Warnf writes a warning line to stderr.
func (r *Renderer) Warnf(format string, a ...any) {
	fmt.Fprintln(r.errOut, r.warn.Render("!")+" "+fmt.Sprintf(format, a...))
}

// Errorf writes an error line to stderr.
func (r *Renderer) Errorf(format string, a ...any) {
	fmt.Fprintln(r.errOut, r.errStyle.Render("✗")+" "+fmt.Sprintf(format, a...))
}

// Mutedf writes a de-emphasized line.
func (r *Renderer) Mutedf(format string, a ...any) {
	fmt.Fprintln(r.out, r.muted.Render(fmt.Sprintf(format, a...)))
}

// KeyValue writes an aligned "key: value" line.
func (r *Renderer) KeyValue(key, value string) {
	fmt.Fprintf(r.out, "  %-14s %s\n", key+":", value)
}

// Table writes a table with the given header and rows.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)

	h := make(table.Row, len(header))
	for i, c := range header {
		h[i] = c
	}
	t.AppendHeader(h)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, c := range row {
			tr[i] = c
		}
		t.AppendRow(tr)
	}

	if r.styled {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleLight)
		t.Style().Options.DrawBorder = false
		t.Style().Options.SeparateColumns = true
	}
	t.Render()
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
