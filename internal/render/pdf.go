package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/sandeepkv93/calbill/internal/invoice"
)

const defaultPDFTimeout = 60 * time.Second

type PDFOptions struct {
	// Timeout bounds the whole browser session.
	Timeout time.Duration
	// ExecPath points at a Chrome/Chromium binary. Empty means autodetect.
	ExecPath string
}

// PDF prints the invoice to path with headless Chromium.
func PDF(parent context.Context, m invoice.Model, path string, opts PDFOptions) error {
	if path == "" {
		return fmt.Errorf("pdf: output path is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultPDFTimeout
	}
	html, err := HTML(m)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "calbill-invoice-*.html")
	if err != nil {
		return fmt.Errorf("pdf: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(html); err != nil {
		tmp.Close()
		return fmt.Errorf("pdf: write html: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var pdf []byte
	tasks := chromedp.Tasks{
		chromedp.Navigate("file://" + filepath.ToSlash(tmp.Name())),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("pdf: chromedp run failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return fmt.Errorf("pdf: write %s: %w", path, err)
	}
	return nil
}

// PDFWriter writes invoices into Dir using FileName.
type PDFWriter struct {
	Dir     string
	Options PDFOptions
	Logger  *zap.Logger
}

func (w PDFWriter) Render(ctx context.Context, m invoice.Model) (string, error) {
	path := filepath.Join(w.Dir, FileName(m))
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("pdf: %s already exists", path)
	}
	start := time.Now()
	if err := PDF(ctx, m, path, w.Options); err != nil {
		return "", err
	}
	if w.Logger != nil {
		w.Logger.Debug("pdf written", zap.String("path", path), zap.Duration("took", time.Since(start)))
	}
	return path, nil
}
