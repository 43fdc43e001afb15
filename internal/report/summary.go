// Package report writes the summary page of a finished build from its
// status journal
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"fireq/internal/audit"
	"fireq/internal/buildctx"
	"fireq/internal/storage"
)

const (
	MarkdownFile = "summary.md"
	HTMLFile     = "summary.htm"
)

// Writer renders summary.md and summary.htm into a build's log directory
type Writer struct {
	storage  *storage.LogStorage
	journals *audit.Journals
	md       goldmark.Markdown
}

// NewWriter creates a summary writer reading from journals
func NewWriter(ls *storage.LogStorage, journals *audit.Journals) *Writer {
	return &Writer{
		storage:  ls,
		journals: journals,
		md:       goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Summarize writes the summary of bc and releases its journal
func (w *Writer) Summarize(bc buildctx.Context, code int) error {
	defer w.journals.Release(bc.LogPath)

	j, err := w.journals.Get(bc.LogPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	src := Markdown(bc, code, j.Entries())
	if _, err := w.storage.Save(bc.LogPath, MarkdownFile, []byte(src)); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := w.md.Convert([]byte(src), &body); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	page := fmt.Sprintf("<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>\n%s</body></html>\n",
		bc.NameUniq, body.String())
	_, err = w.storage.Save(bc.LogPath, HTMLFile, []byte(page))
	return err
}

// Markdown lists the final state of every status context in the order the
// contexts were first posted
func Markdown(bc buildctx.Context, code int, entries []audit.Entry) string {
	var order []string
	final := map[string]audit.Entry{}
	for _, e := range entries {
		if _, ok := final[e.Context]; !ok {
			order = append(order, e.Context)
		}
		final[e.Context] = e
	}

	result := "success"
	if code != 0 {
		result = fmt.Sprintf("failure (exit %d)", code)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", bc.NameUniq)
	fmt.Fprintf(&sb, "- Commit: `%s`\n", bc.SHA)
	fmt.Fprintf(&sb, "- Result: **%s**\n", result)
	if bc.Host != "" {
		fmt.Fprintf(&sb, "- Instance: <http://%s>\n", bc.Host)
	}
	fmt.Fprintf(&sb, "- Logs: <%s>\n\n", bc.LogURL)

	if len(order) == 0 {
		sb.WriteString("No statuses were posted.\n")
		return sb.String()
	}
	sb.WriteString("| Context | State | Link |\n|---|---|---|\n")
	for _, name := range order {
		e := final[name]
		fmt.Fprintf(&sb, "| %s | %s | [%s](%s) |\n", name, e.State, linkText(e.TargetURL), e.TargetURL)
	}
	return sb.String()
}

func linkText(url string) string {
	if i := strings.LastIndex(strings.TrimSuffix(url, "/"), "/"); i >= 0 {
		return strings.Trim(url[i+1:], "/")
	}
	return url
}
