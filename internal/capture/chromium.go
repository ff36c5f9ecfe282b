package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// A4 in inches, used when the document does not set its own @page size.
const (
	A4WidthInches  = 8.27
	A4HeightInches = 11.69

	DefaultTimeoutSec = 30
)

// PDFOptions defines parameters for a Chromium-based PDF print.
type PDFOptions struct {
	// Timeout bounds the entire print operation. If zero, DefaultTimeoutSec
	// is used.
	Timeout time.Duration

	// PrintBackground keeps CSS backgrounds and colors in the output.
	PrintBackground bool
}

// ErrEmptyDocument is returned when there is no HTML to print.
var ErrEmptyDocument = errors.New("capture: empty document")

// PrintPDF launches a headless Chromium instance via chromedp, loads html
// into a blank page and prints it to PDF. The document's own @page rule
// decides the paper size and orientation; A4 is the fallback.
func PrintPDF(parentCtx context.Context, html string, opts PDFOptions) ([]byte, error) {
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyDocument
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var pdf []byte
	tasks := chromedp.Tasks{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPaperWidth(A4WidthInches).
				WithPaperHeight(A4HeightInches).
				WithPreferCSSPageSize(true).
				WithPrintBackground(opts.PrintBackground).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	return pdf, nil
}
