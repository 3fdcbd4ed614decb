package models

import (
	"fmt"
	"strconv"
)

type CommandKind string

const (
	CommandNavigate  CommandKind = "navigate"
	CommandHighlight CommandKind = "highlight"
)

// Command is a viewer instruction embedded in assistant output.
// BBox is only set for highlight commands.
type Command struct {
	Kind CommandKind `json:"kind"`
	Page int         `json:"page"`
	BBox BoundingBox `json:"bbox"`
}

func Navigate(page int) Command {
	return Command{Kind: CommandNavigate, Page: page}
}

func HighlightRegion(page int, bbox BoundingBox) Command {
	return Command{Kind: CommandHighlight, Page: page, BBox: bbox}
}

func (c Command) String() string {
	switch c.Kind {
	case CommandNavigate:
		return fmt.Sprintf("NAVIGATE: %d", c.Page)
	case CommandHighlight:
		return fmt.Sprintf("HIGHLIGHT: %d,%s", c.Page, c.BBox)
	}
	return string(c.Kind)
}

// Highlight is a region highlighted by the document viewer.
type Highlight struct {
	Page int         `json:"page"`
	BBox BoundingBox `json:"bbox"`
}

// String renders the box as x0,y0,x1,y1, the form used in prompts and commands.
func (b BoundingBox) String() string {
	return formatCoord(b.X0) + "," + formatCoord(b.Y0) + "," + formatCoord(b.X1) + "," + formatCoord(b.Y1)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
