package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigen/internal/core"
)

// setup runs the test in an empty directory with vendor keys cleared and output under it.
func setup(t *testing.T) string {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
		"STABILITY_API_KEY", "STABILITY_BASE_URL",
		"PICOGEN_API_KEY", "PICOGEN_BASE_URL",
		"AIGEN_POLL_INTERVAL", "AIGEN_METRICS_ADDR", "AIGEN_LOG_FORMAT",
		"AIGEN_MAX_RETRIES", "AIGEN_QUIZ_CONCURRENCY",
	} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("AIGEN_OUTPUT_DIR", filepath.Join(dir, "images"))
	t.Setenv("AIGEN_QUIZ_DIR", filepath.Join(dir, "quiz"))
	t.Setenv("AIGEN_LOG_LEVEL", "error")
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	setup(t)
	code, out, _ := runCLI(t, "-version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "aigen dev")
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"paint"}},
		{"chat without prompt", []string{"chat"}},
		{"image bad flag", []string{"image", "-n", "many", "a cat"}},
		{"job unknown kind", []string{"job", "-kind", "dalle", "a cat"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup(t)
			t.Setenv("OPENAI_API_KEY", "sk-openai")
			t.Setenv("PICOGEN_API_KEY", "pg-token")
			t.Setenv("STABILITY_API_KEY", "sk-stability")

			code, _, _ := runCLI(t, tt.args...)

			assert.Equal(t, 2, code)
		})
	}
}

func TestRun_SubcommandHelp(t *testing.T) {
	tests := []struct {
		args []string
		flag string
	}{
		{[]string{"chat", "-h"}, "-model"},
		{[]string{"image", "-h"}, "-n"},
		{[]string{"job", "-help"}, "-kind"},
		{[]string{"jobs", "-h"}, "-download"},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			setup(t)

			code, out, stderr := runCLI(t, tt.args...)

			assert.Equal(t, 0, code)
			assert.Empty(t, out)
			assert.Contains(t, stderr, tt.flag)
		})
	}
}

func TestRun_MissingKey(t *testing.T) {
	setup(t)
	code, _, stderr := runCLI(t, "balance")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "STABILITY_API_KEY")
}

func TestRun_BadConfigFile(t *testing.T) {
	setup(t)
	code, _, stderr := runCLI(t, "-config", "nope.yaml", "models")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "failed to load config")
}

func TestRun_Chat(t *testing.T) {
	setup(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Client-Request-Id"))
		var req core.ChatRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "gpt-4", req.Model)
		assert.Equal(t, "why is the sky blue?", req.Messages[0].Content)
		_, _ = w.Write([]byte(`{"id": "c1", "model": "gpt-4", "choices": [{"index": 0, "message": {"role": "assistant", "content": "Rayleigh scattering."}}]}`))
	}))
	t.Cleanup(server.Close)
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("OPENAI_BASE_URL", server.URL)

	code, out, _ := runCLI(t, "chat", "-model", "gpt-4", "why is the sky", "blue?")

	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Rayleigh scattering.")
}

func TestRun_VendorErrorExitsOne(t *testing.T) {
	setup(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided"}}`))
	}))
	t.Cleanup(server.Close)
	t.Setenv("OPENAI_API_KEY", "sk-wrong")
	t.Setenv("OPENAI_BASE_URL", server.URL)

	code, _, stderr := runCLI(t, "models")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Incorrect API key provided")
}

func TestRun_Job(t *testing.T) {
	dir := setup(t)
	var serverURL string
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/job/run", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pg-token", r.Header.Get("API-Token"))
		_, _ = w.Write([]byte(`[null, {"id": "job-7", "cost": 4}]`))
	})
	mux.HandleFunc("/job/get/job-7", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 2 {
			_, _ = w.Write([]byte(`[null, {"id": "job-7", "status": "running"}]`))
			return
		}
		_, _ = w.Write([]byte(`[null, {"id": "job-7", "status": "completed", "result": ["` + serverURL + `/cdn/x.png"]}]`))
	})
	mux.HandleFunc("/cdn/x.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("png-bytes"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	serverURL = server.URL
	t.Setenv("PICOGEN_API_KEY", "pg-token")
	t.Setenv("PICOGEN_BASE_URL", server.URL)
	t.Setenv("AIGEN_POLL_INTERVAL", "1ms")

	code, out, _ := runCLI(t, "job", "-kind", "midjourney", "a castle on a hill")

	assert.Equal(t, 0, code)
	assert.Contains(t, out, "job-7")
	assert.Contains(t, out, "saved 1 image(s)")
	assert.Equal(t, int32(2), polls.Load())

	entries, err := os.ReadDir(filepath.Join(dir, "images"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^image_\d{14}_0\.png$`, entries[0].Name())
}

func TestRun_Quiz(t *testing.T) {
	dir := setup(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "Q1?"}}], "usage": {"total_tokens": 9}}`))
	}))
	t.Cleanup(server.Close)
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("OPENAI_BASE_URL", server.URL)

	code, out, _ := runCLI(t, "quiz", "Channels", "Slices")

	assert.Equal(t, 0, code)
	assert.Contains(t, out, "2 topic(s)")
	data, err := os.ReadFile(filepath.Join(dir, "quiz", "chat-Channels.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Q1?", string(data))
}
