package viewer

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"document-chat/internal/models"
)

var (
	pageStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11"))
)

// Terminal stands in for the PDF viewer on the command line. It keeps a State and
// prints a line each time the page or the highlights actually change.
type Terminal struct {
	*State
	out io.Writer
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{State: NewState(), out: out}
}

func (t *Terminal) NavigateToPage(page int) {
	if t.navigate(page) {
		fmt.Fprintln(t.out, pageStyle.Render(fmt.Sprintf("[viewer] page %d", page)))
	}
}

func (t *Terminal) SetHighlights(highlights []models.Highlight) {
	if !t.setHighlights(highlights) {
		return
	}
	for _, h := range highlights {
		fmt.Fprintln(t.out, highlightStyle.Render(fmt.Sprintf("[viewer] highlight page %d at %s", h.Page, h.BBox)))
	}
}

var failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

// Echo prints a streamed answer as it arrives. It implements models.Sink.
type Echo struct {
	out io.Writer
}

func NewEcho(out io.Writer) *Echo {
	return &Echo{out: out}
}

func (e *Echo) Fragment(text string) error {
	_, err := io.WriteString(e.out, text)
	return err
}

func (e *Echo) Done(finishReason string) error {
	if finishReason == models.FinishReasonError {
		_, err := fmt.Fprintln(e.out, "\n"+failedStyle.Render("[answer failed]"))
		return err
	}
	_, err := fmt.Fprintln(e.out)
	return err
}
