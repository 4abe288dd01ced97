package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/liliang-cn/fixdoc/internal/config"
	"github.com/liliang-cn/fixdoc/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
database:
  path: %s
storage:
  uploads: %s
vector:
  backend: memory
  dimension: 128
llm:
  embedding_provider: hash
log:
  level: error
`, filepath.Join(dir, "fixdoc.db"), filepath.Join(dir, "uploads"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writeManual(t *testing.T) string {
	t.Helper()
	words := make([]string, 300)
	for i := range words {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	path := filepath.Join(t.TempDir(), "washer.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(words, " ")), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		askManuals = nil
		askJSON = false
		askDeviceType, askBrand, askModel = "", "", ""
		ingestDeviceType, ingestBrand, ingestModel = "", "", ""
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestIngestCommand(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, "ingest", "--config", cfgPath, "--env-file", "",
		"--device-type", "washer", "--brand", "LG", writeManual(t))
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"indexed"`)
	assert.Contains(t, out, `"filename":"washer.txt"`)
}

func TestIngestCommandMissingFile(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := execute(t, "ingest", "--config", cfgPath, "--env-file", "",
		"--device-type", "washer", "--brand", "LG", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestAskCommandFallsBack(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, "ask", "--config", cfgPath, "--env-file", "",
		"--device-type", "washer", "--brand", "LG", "--manual", writeManual(t),
		"Why does my fridge hum?")
	require.NoError(t, err)
	assert.Contains(t, out, service.FallbackAnswer)
	assert.NotContains(t, out, "Sources:")
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	cfgPath := writeTestConfig(t)
	env := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(env, []byte("FIXDOC_RAG_TOP_K=7\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("FIXDOC_RAG_TOP_K") })

	configPath, envFile = cfgPath, env
	t.Cleanup(func() { configPath, envFile = "", ".env" })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RAG.TopK)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = newLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
