// Package extract turns uploaded manuals into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/dslipak/pdf"
	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Extraction methods reported in Result.Method
const (
	MethodLayout = "pdftotext-layout"
	MethodPlain  = "pdf-plain"
	MethodText   = "text"
)

// CommandRunner executes external commands
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Result is the text extracted from a file
type Result struct {
	Text      string
	PageCount int
	Method    string
}

type strategy struct {
	name string
	run  func(ctx context.Context, path string) (string, error)
}

// Extractor extracts text on a bounded pool of goroutines so that slow
// files never stall the request that is waiting on them.
type Extractor struct {
	pdfStrategies []strategy
	sem           *semaphore.Weighted
	logger        *zap.Logger
}

// New creates an extractor that shells out to pdftotext
func New(workers int, logger *zap.Logger) *Extractor {
	return NewWithRunner(execRunner{}, workers, logger)
}

// NewWithRunner creates an extractor with a custom command runner
func NewWithRunner(runner CommandRunner, workers int, logger *zap.Logger) *Extractor {
	if workers <= 0 {
		workers = 1
	}
	return &Extractor{
		pdfStrategies: []strategy{
			{name: MethodLayout, run: layoutText(runner)},
			{name: MethodPlain, run: plainText},
		},
		sem:    semaphore.NewWeighted(int64(workers)),
		logger: logger.Named("extract"),
	}
}

// Extract reads the text of the file at path. It blocks until a worker is
// free and the extraction finishes, or ctx is done.
func (e *Extractor) Extract(ctx context.Context, path string, fileType domain.FileType) (*Result, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer e.sem.Release(1)
		res, err := e.extract(ctx, path, fileType)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.res, o.err
	}
}

func (e *Extractor) extract(ctx context.Context, path string, fileType domain.FileType) (*Result, error) {
	switch fileType {
	case domain.FileTypePDF:
		return e.extractPDF(ctx, path)
	case domain.FileTypeText:
		return extractText(path)
	default:
		return nil, domain.Errorf(domain.ErrValidation, "unsupported file type %q", fileType)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (*Result, error) {
	var errs []error
	for _, s := range e.pdfStrategies {
		text, err := s.run(ctx, path)
		if err == nil && strings.TrimSpace(text) == "" {
			err = errors.New("no text found")
		}
		if err != nil {
			e.logger.Warn("pdf extraction failed, trying next method",
				zap.String("method", s.name), zap.String("path", path), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}

		e.logger.Info("extracted pdf text",
			zap.String("method", s.name), zap.String("path", path), zap.Int("chars", len(text)))
		return &Result{Text: text, PageCount: pageCount(path), Method: s.name}, nil
	}
	return nil, domain.Errorf(domain.ErrExtraction, "%s: %w", path, errors.Join(errs...))
}

func layoutText(runner CommandRunner) func(ctx context.Context, path string) (string, error) {
	return func(ctx context.Context, path string) (string, error) {
		out, err := runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func plainText(_ context.Context, path string) (text string, err error) {
	// the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", err
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// pageCount returns 0 when the document cannot be validated
func pageCount(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	count, err := api.PageCount(f, model.NewDefaultConfiguration())
	if err != nil {
		return 0
	}
	return count
}

func extractText(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.Errorf(domain.ErrExtraction, "read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, domain.Errorf(domain.ErrExtraction, "%s is not valid UTF-8 text", path)
	}
	return &Result{Text: string(data), Method: MethodText}, nil
}
