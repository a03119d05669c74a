// Package quiz generates one multiple-choice quiz per topic with the chat client.
package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"aigen/internal/core"
	"aigen/internal/providers/openai"
)

// SystemPrompt instructs the model how to shape every quiz.
const SystemPrompt = `Create a multiple-choice quiz about the Java programming language topic in the
next message. The quiz should have between 3 and 6 questions, each
with four possible answers, with only one correct answer per question.
Label the answers A through D, and identify which answer is correct.

After each question, add a section labeled [Rationales] that explains
each of the potential answers, again labeled A through D to identify which
rationale goes with which answer.
`

// DefaultTopics is used when no topics are given.
var DefaultTopics = []string{
	"Abstract Classes",
	"Exception Handling",
	"Collections",
	"Generic types",
	"Implementing Interfaces",
	"Static and default methods in interfaces",
	"Overriding toString, equals, and hashCode",
	"File Manipulation",
	"Threads, Runnables, and the Executor Framework",
	"Callables and Futures",
	"Locks and Latches",
	"The java.net Package",
	"Working with URLs",
	"Socket and Server Socket",
	"Static and Inner Classes",
	"Lambda Expressions",
	"Streams",
	"Method References",
	"Concurrent Collections",
	"Traditional JDBC Classes",
	"The java.time Package",
}

// ChatCompleter is the part of the chat client the generator needs.
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error)
}

// Generator fans topics out to the chat client and appends each quiz to
// <Dir>/chat-<topic>.txt.
type Generator struct {
	Chat ChatCompleter
	Dir  string
	// Model defaults to gpt-3.5-turbo.
	Model string
	// Concurrency caps in-flight requests. Zero or less runs every topic at once.
	Concurrency int
}

// Generate requests a quiz for every topic. A failing topic does not stop the
// others; every failure is returned in one *multierror.Error.
func (g *Generator) Generate(ctx context.Context, topics []string) error {
	model := g.Model
	if model == "" {
		model = openai.GPT35Turbo
	}

	var sem chan struct{}
	if g.Concurrency > 0 {
		sem = make(chan struct{}, g.Concurrency)
	}

	var group multierror.Group
	for _, topic := range topics {
		topic := topic
		group.Go(func() error {
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					return fmt.Errorf("topic %q: %w", topic, ctx.Err())
				}
			}
			if err := g.generateOne(ctx, model, topic); err != nil {
				return fmt.Errorf("topic %q: %w", topic, err)
			}
			return nil
		})
	}

	return group.Wait().ErrorOrNil()
}

func (g *Generator) generateOne(ctx context.Context, model, topic string) error {
	req := core.NewChatRequest(model, openai.DefaultTemperature,
		core.Message{Role: core.RoleSystem, Content: SystemPrompt},
		core.Message{Role: core.RoleUser, Content: topic},
	)

	resp, err := g.Chat.ChatCompletion(ctx, req)
	if err != nil {
		return err
	}
	content, err := openai.FirstContent(resp)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "quiz generated",
		"topic", topic,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
	)

	return appendFile(FilePath(g.Dir, topic), content)
}

// FilePath returns where the quiz for topic is appended.
func FilePath(dir, topic string) string {
	name := strings.NewReplacer("/", "-", `\`, "-").Replace(topic)
	return filepath.Join(dir, "chat-"+name+".txt")
}

func appendFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating quiz directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
