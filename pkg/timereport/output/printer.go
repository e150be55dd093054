package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes the one-line status messages the CLI shows the operator.
// Colors are dropped automatically when w is not a terminal.
type Printer struct {
	w       io.Writer
	success lipgloss.Style
	warn    lipgloss.Style
	failure lipgloss.Style
	dim     lipgloss.Style
}

func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		success: r.NewStyle().Foreground(lipgloss.Color("2")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")),
		failure: r.NewStyle().Foreground(lipgloss.Color("1")),
		dim:     r.NewStyle().Faint(true),
	}
}

func (p *Printer) Success(format string, args ...any) {
	p.line(p.success, format, args...)
}

func (p *Printer) Warn(format string, args ...any) {
	p.line(p.warn, format, args...)
}

func (p *Printer) Error(format string, args ...any) {
	p.line(p.failure, format, args...)
}

func (p *Printer) Info(format string, args ...any) {
	p.line(p.dim, format, args...)
}

// Plain writes without styling, for values meant to be copied.
func (p *Printer) Plain(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) line(style lipgloss.Style, format string, args ...any) {
	_, _ = fmt.Fprintln(p.w, style.Render(fmt.Sprintf(format, args...)))
}
