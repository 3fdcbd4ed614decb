package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-chat/internal/models"
)

func TestMarkdown_StripsCommands(t *testing.T) {
	out, err := Markdown("It's described on **page 4**.\nHIGHLIGHT: 4,100,200,500,250\n")
	require.NoError(t, err)
	assert.Equal(t, "<p>It's described on <strong>page 4</strong>.</p>", out)
}

func TestMarkdown_GFMAndRawHTML(t *testing.T) {
	out, err := Markdown("| a | b |\n|---|---|\n| 1 | 2 |\n\n<script>alert(1)</script>")
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
	assert.NotContains(t, out, "<script>")
}

func TestTranscript(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	page, err := Transcript("conv-1", []models.Message{
		{ID: "m1", Role: models.RoleUser, Content: "What is a virus?", CreatedAt: at},
		{ID: "m2", Role: models.RoleAssistant, Content: "See page 4.\nNAVIGATE: 4", CreatedAt: at.Add(time.Second)},
	})
	require.NoError(t, err)

	assert.Contains(t, page, "<title>Conversation conv-1</title>")
	assert.Contains(t, page, `<section class="message user" id="m1">`)
	assert.Contains(t, page, "<p>What is a virus?</p>")
	assert.Contains(t, page, "<p>See page 4.</p>")
	assert.Contains(t, page, `datetime="2024-05-01T12:00:01Z"`)
	assert.NotContains(t, page, "NAVIGATE")
}
