package commands

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-chat/internal/models"
	"document-chat/internal/viewer"
)

// recordingViewer records every call it receives.
type recordingViewer struct {
	calls []string
}

func (r *recordingViewer) NavigateToPage(page int) {
	r.calls = append(r.calls, fmt.Sprintf("navigate %d", page))
}

func (r *recordingViewer) SetHighlights(highlights []models.Highlight) {
	parts := make([]string, len(highlights))
	for i, h := range highlights {
		parts[i] = fmt.Sprintf("%d@%s", h.Page, h.BBox)
	}
	r.calls = append(r.calls, "highlight "+strings.Join(parts, ";"))
}

func TestDispatcher_HighlightImpliesNavigation(t *testing.T) {
	rec := &recordingViewer{}
	NewDispatcher(rec).Dispatch([]models.Command{
		models.HighlightRegion(4, models.BoundingBox{X0: 100, Y0: 200, X1: 500, Y1: 250}),
	})
	assert.Equal(t, []string{"highlight 4@100,200,500,250", "navigate 4"}, rec.calls)
}

func TestDispatcher_Navigate(t *testing.T) {
	rec := &recordingViewer{}
	NewDispatcher(rec).Dispatch([]models.Command{models.Navigate(2), {Kind: "zoom", Page: 3}, models.Navigate(5)})
	assert.Equal(t, []string{"navigate 2", "navigate 5"}, rec.calls)
}

func TestDispatcher_Idempotent(t *testing.T) {
	bbox := models.BoundingBox{X0: 1, Y0: 2, X1: 3, Y1: 4}
	cmd := models.HighlightRegion(4, bbox)

	once := viewer.NewState()
	NewDispatcher(once).Dispatch([]models.Command{cmd})

	twice := viewer.NewState()
	d := NewDispatcher(twice)
	d.Dispatch([]models.Command{cmd})
	d.Dispatch([]models.Command{cmd})

	assert.Equal(t, once.Snapshot(), twice.Snapshot())
	assert.Equal(t, 4, twice.Snapshot().Page)
	assert.Equal(t, []models.Highlight{{Page: 4, BBox: bbox}}, twice.Snapshot().Highlights)
}

// splits returns text cut into fragments at every boundary of size n.
func splits(text string, n int) []string {
	var out []string
	for len(text) > n {
		out = append(out, text[:n])
		text = text[n:]
	}
	return append(out, text)
}

func TestStreamState_FragmentBoundaries(t *testing.T) {
	text := "Answer.\nNAVIGATE: 2\nDone."
	for size := 1; size <= len(text); size++ {
		t.Run(fmt.Sprintf("fragments of %d", size), func(t *testing.T) {
			rec := &recordingViewer{}
			state := NewStreamState(NewDispatcher(rec), "conv")
			for _, f := range splits(text, size) {
				require.NoError(t, state.Fragment(f))
			}
			require.NoError(t, state.Done(models.FinishReasonStop))

			assert.Equal(t, []models.Command{models.Navigate(2)}, state.Commands())
			assert.Equal(t, []string{"navigate 2"}, rec.calls)
		})
	}
}

func TestStreamState_EveryCutPoint(t *testing.T) {
	text := "It's on page 4.\nHIGHLIGHT: 4,100.5,200,500,250.75\nNAVIGATE: 12"
	for cut := 0; cut <= len(text); cut++ {
		rec := &recordingViewer{}
		state := NewStreamState(NewDispatcher(rec), "conv")
		require.NoError(t, state.Fragment(text[:cut]))
		require.NoError(t, state.Fragment(text[cut:]))
		require.NoError(t, state.Done(models.FinishReasonStop))

		assert.Equal(t, []models.Command{
			models.HighlightRegion(4, models.BoundingBox{X0: 100.5, Y0: 200, X1: 500, Y1: 250.75}),
			models.Navigate(12),
		}, state.Commands(), "cut at %d", cut)
	}
}

func TestStreamState_DispatchesBeforeDone(t *testing.T) {
	rec := &recordingViewer{}
	state := NewStreamState(NewDispatcher(rec), "conv")

	require.NoError(t, state.Fragment("Look.\nNAVIGATE: 3"))
	assert.Empty(t, rec.calls)

	require.NoError(t, state.Fragment("\nMore text"))
	assert.Equal(t, []string{"navigate 3"}, rec.calls)

	require.NoError(t, state.Done(models.FinishReasonStop))
	assert.Equal(t, []string{"navigate 3"}, rec.calls)
}

func TestStreamState_Message(t *testing.T) {
	state := NewStreamState(NewDispatcher(&recordingViewer{}), "conv-1")
	_, ok := state.Message()
	assert.False(t, ok)

	require.NoError(t, state.Fragment("Hello "))
	require.NoError(t, state.Fragment("world"))
	require.NoError(t, state.Done(models.FinishReasonStop))

	msg, ok := state.Message()
	require.True(t, ok)
	assert.Equal(t, "Hello world", msg.Content)
	assert.Equal(t, models.RoleAssistant, msg.Role)
	assert.Equal(t, "conv-1", msg.ConversationID)
	assert.Equal(t, models.FinishReasonStop, state.FinishReason())

	assert.ErrorIs(t, state.Fragment("late"), ErrStreamClosed)
	assert.ErrorIs(t, state.Done(models.FinishReasonStop), ErrStreamClosed)
}

func TestStreamState_ErrorFinishDispatchesNothingPending(t *testing.T) {
	rec := &recordingViewer{}
	state := NewStreamState(NewDispatcher(rec), "conv")
	require.NoError(t, state.Fragment("NAVIGATE: 3"))
	require.NoError(t, state.Done(models.FinishReasonError))
	assert.Empty(t, rec.calls)
}
