// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/aish/internal/ui/styles"
)

// PrinterOptions configures a Printer.
type PrinterOptions struct {
	Out   io.Writer
	Theme *styles.Theme

	// Markdown renders conclusions with glamour.
	Markdown bool
	// Highlight colors commands with chroma.
	Highlight bool
	// Animate shows the working spinner.
	Animate bool
	// Width is the wrap width for markdown. Zero uses the terminal width.
	Width int
}

// Printer writes assistant progress to the terminal. Writes are serialized so
// the working animation never interleaves with output.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	theme   *styles.Theme
	md      *glamour.TermRenderer
	chroma  chroma.Formatter
	animate bool
	spinner styles.SpinnerConfig
}

// NewPrinter returns a Printer. Rendering features fall back to plain text
// when their renderer cannot be built.
func NewPrinter(opts PrinterOptions) *Printer {
	if opts.Theme == nil {
		opts.Theme = styles.Plain()
	}
	p := &Printer{
		out:     opts.Out,
		theme:   opts.Theme,
		animate: opts.Animate,
		spinner: styles.WorkingSpinner,
	}

	if opts.Markdown {
		width := opts.Width
		if width <= 0 {
			width = GetTerminalWidth()
		}
		style := "light"
		if opts.Theme.IsDark {
			style = "dark"
		}
		if r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width-2),
		); err == nil {
			p.md = r
		}
	}

	if opts.Highlight {
		name := "terminal256"
		if opts.Theme.ColorProfile == termenv.TrueColor {
			name = "terminal16m"
		}
		p.chroma = formatters.Get(name)
	}
	return p
}

// Reasoning prints the model's reasoning.
func (p *Printer) Reasoning(text string) {
	p.println(styles.Indicators.Reasoning + " " + renderLines(p.theme.Reasoning, text))
}

// Conclusion prints the model's conclusion, rendered as markdown when
// enabled.
func (p *Printer) Conclusion(text string) {
	if p.md != nil {
		if rendered, err := p.md.Render(text); err == nil {
			p.println(styles.Indicators.Conclusion + strings.TrimRight(rendered, "\n"))
			return
		}
	}
	p.println(styles.Indicators.Conclusion + " " + renderLines(p.theme.Conclusion, text))
}

// Command echoes a command the assistant is about to run.
func (p *Printer) Command(command string) {
	p.println(styles.Indicators.Command + " " + p.highlight(command))
}

// Output prints command stdout.
func (p *Printer) Output(stdout string) {
	stdout = strings.TrimRight(stdout, "\n")
	if stdout == "" {
		return
	}
	p.println(renderLines(p.theme.Output, stdout))
}

// Error prints an error message.
func (p *Printer) Error(message string) {
	p.println(renderLines(p.theme.Error, strings.TrimRight(message, "\n")))
}

// Notice prints an informational message.
func (p *Printer) Notice(message string) {
	p.println(renderLines(p.theme.Notice, message))
}

// Working blinks the spinner until the returned function is called. The stop
// function clears the spinner line and may be called more than once.
func (p *Printer) Working() func() {
	if !p.animate {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(p.spinner.Duration())
		defer ticker.Stop()

		frame := 0
		p.frame(frame)
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
				p.frame(frame)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
			p.mu.Lock()
			fmt.Fprint(p.out, "\r"+strings.Repeat(" ", lipgloss.Width(p.spinner.Frame(0)))+"\r")
			p.mu.Unlock()
		})
	}
}

func (p *Printer) frame(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, "\r"+p.theme.Spinner.Render(p.spinner.Frame(i)))
}

func (p *Printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

// highlight colors a shell command. The command is returned unchanged if
// highlighting is off or fails.
func (p *Printer) highlight(command string) string {
	if p.chroma == nil {
		return p.theme.Command.Render(command)
	}

	lexer := lexers.Get("bash")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if !p.theme.IsDark {
		style = chromaStyles.Get("friendly")
	}
	if style == nil {
		style = chromaStyles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, command)
	if err != nil {
		return command
	}
	var buf strings.Builder
	if err := p.chroma.Format(&buf, style, iterator); err != nil {
		return command
	}
	return strings.TrimRight(buf.String(), "\n")
}

// renderLines styles each line separately so lipgloss does not pad short
// lines to the width of the longest.
func renderLines(style lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = style.Render(line)
	}
	return strings.Join(lines, "\n")
}
