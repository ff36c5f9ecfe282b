package capture

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintPDF_EmptyDocument(t *testing.T) {
	_, err := PrintPDF(context.Background(), "  \n", PDFOptions{})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

// Needs a local Chromium; set ICSVIEW_CHROMIUM_TESTS=1 to run.
func TestPrintPDF_Chromium(t *testing.T) {
	if os.Getenv("ICSVIEW_CHROMIUM_TESTS") == "" {
		t.Skip("ICSVIEW_CHROMIUM_TESTS not set")
	}
	html := `<!doctype html><html><head><style>@page { size: A4 portrait; }</style></head><body><h1>hello</h1></body></html>`

	pdf, err := PrintPDF(context.Background(), html, PDFOptions{Timeout: 20 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}
