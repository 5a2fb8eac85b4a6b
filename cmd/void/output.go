package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hashfydr/void-CLI/internal/feed"
	"github.com/hashfydr/void-CLI/internal/models"
)

const banner = `
    ██╗   ██╗ ██████╗ ██╗██████╗
    ██║   ██║██╔═══██╗██║██╔══██╗
    ██║   ██║██║   ██║██║██║  ██║
    ╚██╗ ██╔╝██║   ██║██║██║  ██║
     ╚████╔╝ ╚██████╔╝██║██████╔╝
      ╚═══╝   ╚═════╝ ╚═╝╚═════╝
`

const timeLayout = "2006-01-02 15:04:05"

// printer writes styled CLI output. Colors are dropped when out is not a
// terminal.
type printer struct {
	out io.Writer

	banner  lipgloss.Style
	author  lipgloss.Style
	time    lipgloss.Style
	muted   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	failure lipgloss.Style
}

func newPrinter(out io.Writer) *printer {
	r := lipgloss.NewRenderer(out)
	return &printer{
		out:     out,
		banner:  r.NewStyle().Foreground(lipgloss.Color("2")),
		author:  r.NewStyle().Foreground(lipgloss.Color("3")),
		time:    r.NewStyle().Foreground(lipgloss.Color("6")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("2")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")),
		failure: r.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

func (p *printer) Banner() {
	fmt.Fprintln(p.out, p.banner.Render(banner))
}

func (p *printer) OK(format string, args ...any) {
	fmt.Fprintln(p.out, p.ok.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.out, p.warn.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) Fail(format string, args ...any) {
	fmt.Fprintln(p.out, p.failure.Render(fmt.Sprintf(format, args...)))
}

// Feed prints posts newest first, each followed by its comments.
func (p *printer) Feed(entries []feed.Entry) {
	if len(entries) == 0 {
		p.Warn("No posts in the feed yet.")
		return
	}
	for _, e := range entries {
		p.Post(e.Post)
		if len(e.Comments) == 0 {
			fmt.Fprintln(p.out)
			continue
		}
		fmt.Fprintln(p.out, p.muted.Render("  Comments:"))
		for _, c := range e.Comments {
			fmt.Fprintf(p.out, "    %s: %s\n", p.author.Render(nameOr(c.AuthorUsername)), c.Text)
		}
		fmt.Fprintln(p.out)
	}
}

func (p *printer) Post(post models.Post) {
	ts := "No timestamp"
	if !post.CreatedAt.IsZero() {
		ts = post.CreatedAt.Local().Format(timeLayout)
	}
	fmt.Fprintf(p.out, "%s - %s\n%s\n", p.author.Render(nameOr(post.Username)), p.time.Render(ts), post.Content)
}

func nameOr(name string) string {
	if name == "" {
		return "Anonymous"
	}
	return name
}

// postLabel is the one-line form of a post used in pickers.
func postLabel(i int, post models.Post) string {
	content := strings.Join(strings.Fields(post.Content), " ")
	if r := []rune(content); len(r) > 80 {
		content = string(r[:80]) + "..."
	}
	return fmt.Sprintf("%d. %s", i+1, content)
}
