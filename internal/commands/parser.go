package commands

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"document-chat/internal/models"
)

var (
	navigateRe    = regexp.MustCompile(models.NavigateRegex)
	highlightRe   = regexp.MustCompile(models.HighlightRegex)
	commandLineRe = regexp.MustCompile(models.CommandLineRegex)
)

// Located is a parsed command together with the byte range it occupies in the text.
type Located struct {
	Command    models.Command
	Start, End int
}

// Parse extracts every well-formed command from text, in text order.
// Malformed command text is skipped.
func Parse(text string) []models.Command {
	located := Scan(text, 0)
	if len(located) == 0 {
		return nil
	}
	cmds := make([]models.Command, len(located))
	for i, l := range located {
		cmds[i] = l.Command
	}
	return cmds
}

// Scan returns the commands that start at or after byte offset from.
// Offsets in the result are relative to text.
func Scan(text string, from int) []Located {
	if from < 0 {
		from = 0
	}
	if from >= len(text) {
		return nil
	}
	tail := text[from:]

	var out []Located
	for _, m := range navigateRe.FindAllStringSubmatchIndex(tail, -1) {
		page, err := strconv.Atoi(tail[m[2]:m[3]])
		if err != nil || page < 1 {
			continue
		}
		out = append(out, Located{Command: models.Navigate(page), Start: from + m[0], End: from + m[1]})
	}
	for _, m := range highlightRe.FindAllStringSubmatchIndex(tail, -1) {
		var fields [5]float64
		ok := true
		for i := range fields {
			v, err := strconv.ParseFloat(tail[m[2+2*i]:m[3+2*i]], 64)
			if err != nil {
				ok = false
				break
			}
			fields[i] = v
		}
		if !ok || fields[0] < 1 || fields[0] != math.Trunc(fields[0]) {
			continue
		}
		bbox := models.BoundingBox{X0: fields[1], Y0: fields[2], X1: fields[3], Y1: fields[4]}
		out = append(out, Located{Command: models.HighlightRegion(int(fields[0]), bbox), Start: from + m[0], End: from + m[1]})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Confirmed reports whether more input could still change the command found at l.
// A match that ends the buffer, or is followed by a digit or a decimal point that may
// start a fraction, is not yet final.
func Confirmed(text string, l Located) bool {
	rest := text[l.End:]
	if rest == "" {
		return false
	}
	switch c := rest[0]; {
	case c >= '0' && c <= '9':
		return false
	case c == '.':
		return len(rest) > 1 && (rest[1] < '0' || rest[1] > '9')
	}
	return true
}

// Strip removes whole lines holding commands so the text can be shown to a reader.
func Strip(text string) string {
	return strings.TrimRight(commandLineRe.ReplaceAllString(text, ""), "\n")
}
