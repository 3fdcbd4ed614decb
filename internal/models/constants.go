package models

const (
	NavigateRegex  = `(?i)NAVIGATE:\s*(?:page\s*)?(\d+)`
	HighlightRegex = `(?i)HIGHLIGHT:\s*(?:page\s*)?` +
		numberField + `\s*,\s*` + numberField + `\s*,\s*` + numberField + `\s*,\s*` + numberField + `\s*,\s*` + numberField
	// CommandLineRegex matches a whole line holding a command, used when rendering for display.
	CommandLineRegex = `(?im)^[ \t]*(?:NAVIGATE|HIGHLIGHT):[^\n]*(?:\n|$)`

	numberField = `(-?\d+(?:\.\d+)?)`

	DefaultTopK               = 5
	DefaultEmbeddingDimension = 1536
)

var (
	// CommandProtocol is embedded verbatim in every system prompt.
	CommandProtocol = `You can control the PDF viewer the user is looking at. To do so, write a command on its own line with no other text on that line. Only two commands exist:

NAVIGATE: <page_number>
HIGHLIGHT: <page_number>,<x0>,<y0>,<x1>,<y1>

NAVIGATE moves the viewer to the given page. HIGHLIGHT moves the viewer to the given page and highlights the rectangle x0,y0,x1,y1 on it. Write numbers as plain decimals separated by commas with no spaces. Only use page numbers and coordinates that appear in the context below. When your answer relies on a specific passage, highlight it.`

	RoleInstructions = `You are a helpful assistant answering questions about a PDF document the user is reading. Answer using only the context taken from the document. If the context does not contain the answer, say so plainly.`

	NoContextPhrase = `No relevant context was found in the document for this question.`

	// StoreUnavailableAnswer is the degraded assistant answer when the chunk store cannot be queried.
	StoreUnavailableAnswer = `Sorry, the content of this document is not available right now, so I can't answer questions about it. Please try again in a moment.`

	// TurnFailedAnswer is sent to the user when a turn fails while embedding or streaming.
	TurnFailedAnswer = `Sorry, something went wrong while generating the answer. Please try again.`
)
