package stream

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/hashfydr/void-CLI/internal/models"
)

// Level is the severity of a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Renderer draws a session. Implementations must be safe for concurrent
// use; every call is one critical section so lines never interleave.
type Renderer interface {
	// Begin clears the view and prints the session header.
	Begin(title, hint string)
	// Append adds items, oldest first, below the view.
	Append(items ...models.Item)
	// Prepend adds items, oldest first, above the view and repaints.
	Prepend(items ...models.Item)
	// Replace swaps the whole view and repaints.
	Replace(items ...models.Item)
	Notice(level Level, msg string)
	// View returns the items currently shown, oldest first.
	View() []models.Item
}

const timeLayout = "2006-01-02 15:04:05"

// FormatItem renders an item as a plain display line.
func FormatItem(it models.Item) string {
	return fmt.Sprintf("%s - %s: %s", formatTime(it), displayName(it), it.Text)
}

func formatTime(it models.Item) string {
	if it.CreatedAt.IsZero() {
		return ""
	}
	return it.CreatedAt.Local().Format(timeLayout)
}

func displayName(it models.Item) string {
	if it.AuthorUsername == "" {
		return "Anonymous"
	}
	return it.AuthorUsername
}

type styles struct {
	title lipgloss.Style
	hint  lipgloss.Style
	time  lipgloss.Style
	name  lipgloss.Style
	info  lipgloss.Style
	warn  lipgloss.Style
	err   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		hint:  r.NewStyle().Foreground(lipgloss.Color("8")),
		time:  r.NewStyle().Foreground(lipgloss.Color("6")),
		name:  r.NewStyle().Foreground(lipgloss.Color("3")),
		info:  r.NewStyle().Foreground(lipgloss.Color("8")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("3")),
		err:   r.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// TerminalRenderer writes styled lines to a terminal and keeps a model of
// what is on screen.
type TerminalRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles styles
	clear  bool

	title string
	hint  string
	view  []models.Item
}

// NewTerminalRenderer creates a renderer writing to out. Colors and
// screen clearing are only used when out is a terminal.
func NewTerminalRenderer(out io.Writer) *TerminalRenderer {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &TerminalRenderer{
		out:    out,
		styles: newStyles(lipgloss.NewRenderer(out)),
		clear:  tty,
	}
}

func (t *TerminalRenderer) Begin(title, hint string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.title, t.hint = title, hint
	t.view = nil
	t.repaintLocked()
}

func (t *TerminalRenderer) Append(items ...models.Item) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	for _, it := range items {
		t.view = append(t.view, it)
		b.WriteString(t.line(it))
		b.WriteByte('\n')
	}
	fmt.Fprint(t.out, b.String())
}

func (t *TerminalRenderer) Prepend(items ...models.Item) {
	t.mu.Lock()
	defer t.mu.Unlock()

	view := make([]models.Item, 0, len(items)+len(t.view))
	view = append(view, items...)
	t.view = append(view, t.view...)
	t.repaintLocked()
}

func (t *TerminalRenderer) Replace(items ...models.Item) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.view = append([]models.Item(nil), items...)
	t.repaintLocked()
}

func (t *TerminalRenderer) Notice(level Level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	style := t.styles.info
	switch level {
	case LevelWarn:
		style = t.styles.warn
	case LevelError:
		style = t.styles.err
	}
	fmt.Fprintln(t.out, style.Render(msg))
}

func (t *TerminalRenderer) View() []models.Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Item(nil), t.view...)
}

func (t *TerminalRenderer) line(it models.Item) string {
	return fmt.Sprintf("%s - %s: %s",
		t.styles.time.Render(formatTime(it)),
		t.styles.name.Render(displayName(it)),
		it.Text)
}

func (t *TerminalRenderer) repaintLocked() {
	var b strings.Builder
	if t.clear {
		b.WriteString("\033[H\033[2J")
	}
	if t.title != "" {
		b.WriteString(t.styles.title.Render(t.title))
		b.WriteByte('\n')
	}
	if t.hint != "" {
		b.WriteString(t.styles.hint.Render(t.hint))
		b.WriteByte('\n')
	}
	for _, it := range t.view {
		b.WriteString(t.line(it))
		b.WriteByte('\n')
	}
	fmt.Fprint(t.out, b.String())
}
