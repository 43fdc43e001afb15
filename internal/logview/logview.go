// Package logview renders build logs as browsable HTML pages
package logview

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/x/ansi"
)

const (
	DefaultLexer = "bash"
	DefaultStyle = "monokai"
)

// Renderer highlights shell traces into a standalone HTML page with line
// numbers. Terminal escape sequences are removed first
type Renderer struct {
	lexer     chroma.Lexer
	style     *chroma.Style
	formatter *html.Formatter
}

// NewRenderer returns a renderer using the named chroma style. Unknown
// styles fall back to chroma's default
func NewRenderer(style string) *Renderer {
	lexer := lexers.Get(DefaultLexer)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return &Renderer{
		lexer: chroma.Coalesce(lexer),
		style: styles.Get(style),
		formatter: html.New(
			html.Standalone(true),
			html.WithLineNumbers(true),
			html.WithLinkableLineNumbers(true, "L"),
		),
	}
}

// Render writes the HTML page for log to w
func (r *Renderer) Render(w io.Writer, log string) error {
	it, err := r.lexer.Tokenise(nil, ansi.Strip(log))
	if err != nil {
		return fmt.Errorf("tokenise log: %w", err)
	}
	return r.formatter.Format(w, r.style, it)
}

// RenderFile renders the log at src into dst, replacing dst
func (r *Renderer) RenderFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if err := r.Render(f, string(data)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
