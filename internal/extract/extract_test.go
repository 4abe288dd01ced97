package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
	name   string
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	return m.output, m.err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestExtractPDFUsesLayoutFirst(t *testing.T) {
	runner := &mockRunner{output: []byte("Model WF45\n\nTroubleshooting\n")}
	e := NewWithRunner(runner, 2, zap.NewNop())
	path := writeFile(t, "manual.pdf", []byte("not really a pdf"))

	res, err := e.Extract(context.Background(), path, domain.FileTypePDF)
	require.NoError(t, err)

	assert.Equal(t, MethodLayout, res.Method)
	assert.Equal(t, "Model WF45\n\nTroubleshooting\n", res.Text)
	assert.Equal(t, 0, res.PageCount)
	assert.Equal(t, "pdftotext", runner.name)
	assert.Contains(t, runner.args, "-layout")
	assert.Contains(t, runner.args, path)
}

func TestExtractPDFFallsBackOnBlankOrError(t *testing.T) {
	tests := []struct {
		name   string
		runner *mockRunner
	}{
		{name: "runner error", runner: &mockRunner{err: errors.New("exit status 1")}},
		{name: "whitespace only", runner: &mockRunner{output: []byte(" \n\t\n")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewWithRunner(tc.runner, 1, zap.NewNop())
			e.pdfStrategies[1].run = func(context.Context, string) (string, error) {
				return "plain fallback text", nil
			}

			res, err := e.Extract(context.Background(), writeFile(t, "m.pdf", []byte("%PDF")), domain.FileTypePDF)
			require.NoError(t, err)
			assert.Equal(t, MethodPlain, res.Method)
			assert.Equal(t, "plain fallback text", res.Text)
		})
	}
}

func TestExtractPDFBothMethodsFail(t *testing.T) {
	e := NewWithRunner(&mockRunner{err: errors.New("pdftotext missing")}, 1, zap.NewNop())
	path := writeFile(t, "broken.pdf", []byte("garbage bytes"))

	res, err := e.Extract(context.Background(), path, domain.FileTypePDF)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.Contains(t, err.Error(), "pdftotext missing")
}

func TestExtractText(t *testing.T) {
	e := NewWithRunner(&mockRunner{}, 1, zap.NewNop())

	res, err := e.Extract(context.Background(), writeFile(t, "m.txt", []byte("Reset the breaker.")), domain.FileTypeText)
	require.NoError(t, err)
	assert.Equal(t, MethodText, res.Method)
	assert.Equal(t, "Reset the breaker.", res.Text)

	_, err = e.Extract(context.Background(), writeFile(t, "bad.txt", []byte{0xff, 0xfe, 0xfd}), domain.FileTypeText)
	assert.ErrorIs(t, err, domain.ErrExtraction)

	_, err = e.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), domain.FileTypeText)
	assert.ErrorIs(t, err, domain.ErrExtraction)

	_, err = e.Extract(context.Background(), "x.doc", domain.FileType("doc"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestExtractHonoursContext(t *testing.T) {
	e := NewWithRunner(&mockRunner{}, 1, zap.NewNop())
	release := make(chan struct{})
	e.pdfStrategies = []strategy{{name: "slow", run: func(context.Context, string) (string, error) {
		<-release
		return "done", nil
	}}}
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Extract(ctx, "slow.pdf", domain.FileTypePDF)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtractBoundsConcurrency(t *testing.T) {
	e := NewWithRunner(&mockRunner{}, 2, zap.NewNop())

	var (
		mu        sync.Mutex
		active    int
		maxActive int
	)
	e.pdfStrategies = []strategy{{name: "counting", run: func(context.Context, string) (string, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return "text", nil
	}}}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Extract(context.Background(), "m.pdf", domain.FileTypePDF)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxActive, 2)
}
