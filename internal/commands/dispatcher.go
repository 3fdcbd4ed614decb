package commands

import (
	"github.com/rs/zerolog/log"

	"document-chat/internal/models"
)

// Viewer is the document viewer driven by assistant commands.
// Implementations must treat repeated calls with the same arguments as no-ops.
type Viewer interface {
	NavigateToPage(page int)
	SetHighlights(highlights []models.Highlight)
}

// Dispatcher relays parsed commands to a viewer.
type Dispatcher struct {
	viewer Viewer
}

func NewDispatcher(viewer Viewer) *Dispatcher {
	return &Dispatcher{viewer: viewer}
}

// Dispatch applies cmds in order. A highlight also moves the viewer to its page,
// even when no NAVIGATE for that page came first.
func (d *Dispatcher) Dispatch(cmds []models.Command) {
	for _, cmd := range cmds {
		switch cmd.Kind {
		case models.CommandNavigate:
			d.viewer.NavigateToPage(cmd.Page)
		case models.CommandHighlight:
			d.viewer.SetHighlights([]models.Highlight{{Page: cmd.Page, BBox: cmd.BBox}})
			d.viewer.NavigateToPage(cmd.Page)
		default:
			log.Warn().Str("kind", string(cmd.Kind)).Msg("Ignoring unknown command")
			continue
		}
		log.Debug().Stringer("command", cmd).Msg("Dispatched command")
	}
}
