package quiz

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigen/internal/core"
	"aigen/internal/providers/openai"
)

type fakeChat struct {
	mu       sync.Mutex
	requests []*core.ChatRequest
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	fail     map[string]error
}

func (f *fakeChat) ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	topic := req.Messages[len(req.Messages)-1].Content
	if err, ok := f.fail[topic]; ok {
		return nil, err
	}
	return &core.ChatResponse{
		Choices: []core.Choice{{Message: core.Message{Role: core.RoleAssistant, Content: "Quiz on " + topic + "\n"}}},
		Usage:   core.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

func TestGenerate_WritesOneFilePerTopic(t *testing.T) {
	dir := t.TempDir()
	chat := &fakeChat{}
	gen := &Generator{Chat: chat, Dir: dir}

	err := gen.Generate(context.Background(), []string{"Channels", "Generics"})

	require.NoError(t, err)
	require.Len(t, chat.requests, 2)
	for _, req := range chat.requests {
		assert.Equal(t, openai.GPT35Turbo, req.Model)
		assert.Equal(t, openai.DefaultTemperature, req.Temperature)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, core.RoleSystem, req.Messages[0].Role)
		assert.Equal(t, SystemPrompt, req.Messages[0].Content)
		assert.Equal(t, core.RoleUser, req.Messages[1].Role)
	}

	data, err := os.ReadFile(filepath.Join(dir, "chat-Channels.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Quiz on Channels\n", string(data))
	_, err = os.Stat(filepath.Join(dir, "chat-Generics.txt"))
	assert.NoError(t, err)
}

func TestGenerate_AppendsToExistingFile(t *testing.T) {
	dir := t.TempDir()
	gen := &Generator{Chat: &fakeChat{}, Dir: dir, Model: openai.GPT4}

	require.NoError(t, gen.Generate(context.Background(), []string{"Maps"}))
	require.NoError(t, gen.Generate(context.Background(), []string{"Maps"}))

	data, err := os.ReadFile(filepath.Join(dir, "chat-Maps.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Quiz on Maps\nQuiz on Maps\n", string(data))
}

func TestGenerate_AggregatesFailures(t *testing.T) {
	dir := t.TempDir()
	chat := &fakeChat{fail: map[string]error{
		"Broken":  core.NewRequestError("openai", 500, "boom", nil),
		"Limited": core.NewRequestError("openai", 429, "slow down", nil),
	}}
	gen := &Generator{Chat: chat, Dir: dir}

	err := gen.Generate(context.Background(), []string{"Broken", "Fine", "Limited"})

	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
	assert.Contains(t, err.Error(), `topic "Broken"`)
	assert.Contains(t, err.Error(), `topic "Limited"`)
	assert.Equal(t, core.ErrorKindRequest, core.KindOf(merr.Errors[0]))

	_, statErr := os.Stat(filepath.Join(dir, "chat-Fine.txt"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(dir, "chat-Broken.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerate_NoChoicesIsAnError(t *testing.T) {
	gen := &Generator{Chat: emptyChat{}, Dir: t.TempDir()}

	err := gen.Generate(context.Background(), []string{"Empty"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

type emptyChat struct{}

func (emptyChat) ChatCompletion(context.Context, *core.ChatRequest) (*core.ChatResponse, error) {
	return &core.ChatResponse{}, nil
}

func TestGenerate_RespectsConcurrency(t *testing.T) {
	chat := &fakeChat{delay: 20 * time.Millisecond}
	gen := &Generator{Chat: chat, Dir: t.TempDir(), Concurrency: 2}

	err := gen.Generate(context.Background(), []string{"a", "b", "c", "d", "e", "f"})

	require.NoError(t, err)
	assert.Len(t, chat.requests, 6)
	assert.LessOrEqual(t, chat.peak.Load(), int32(2))
}

func TestGenerate_NoTopics(t *testing.T) {
	gen := &Generator{Chat: &fakeChat{}, Dir: t.TempDir()}
	assert.NoError(t, gen.Generate(context.Background(), nil))
}

func TestFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "chat-Streams.txt"), FilePath("out", "Streams"))
	assert.Equal(t, filepath.Join("out", "chat-input-output.txt"), FilePath("out", "input/output"))
}

func TestGenerate_DefaultTopics(t *testing.T) {
	dir := t.TempDir()
	chat := &fakeChat{}
	gen := &Generator{Chat: chat, Dir: dir}

	require.NoError(t, gen.Generate(context.Background(), DefaultTopics))

	assert.Len(t, DefaultTopics, 21)
	assert.Len(t, chat.requests, len(DefaultTopics))
	assert.Contains(t, SystemPrompt, "Java programming language")
	for _, topic := range []string{"Abstract Classes", "Threads, Runnables, and the Executor Framework", "The java.time Package"} {
		_, err := os.Stat(FilePath(dir, topic))
		assert.NoError(t, err, topic)
	}
}
