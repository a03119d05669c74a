package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"aigen/internal/app"
	"aigen/internal/providers/picogen"
	"aigen/internal/quiz"
)

type command func(ctx context.Context, a *app.App, args []string, p *printer) error

var commands = map[string]command{
	"models":  runModels,
	"chat":    runChat,
	"balance": runBalance,
	"engines": runEngines,
	"image":   runImage,
	"job":     runJob,
	"jobs":    runJobs,
	"quiz":    runQuiz,
}

// usageError marks bad command line input.
type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

// printer writes command results to out and flag usage to errOut.
// Colors follow fatih/color's terminal detection.
type printer struct {
	out     io.Writer
	errOut  io.Writer
	heading *color.Color
	value   *color.Color
	faint   *color.Color
}

func newPrinter(out, errOut io.Writer) *printer {
	return &printer{
		out:     out,
		errOut:  errOut,
		heading: color.New(color.FgCyan, color.Bold),
		value:   color.New(color.FgGreen),
		faint:   color.New(color.Faint),
	}
}

func (p *printer) Heading(format string, args ...any) {
	_, _ = p.heading.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) Field(name string, value any) {
	_, _ = fmt.Fprintf(p.out, "%s %s\n", p.faint.Sprint(name+":"), p.value.Sprint(value))
}

func (p *printer) Line(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format+"\n", args...)
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// parse passes flag.ErrHelp through so -h exits cleanly.
func parse(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, flag.ErrHelp):
		return err
	default:
		return usageError{msg: err.Error()}
	}
}

func promptArg(fs *flag.FlagSet) (string, error) {
	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return "", usageError{msg: "a prompt is required"}
	}
	return prompt, nil
}

func runModels(ctx context.Context, a *app.App, _ []string, p *printer) error {
	chat, err := a.OpenAI()
	if err != nil {
		return err
	}
	models, err := chat.ListModels(ctx)
	if err != nil {
		return err
	}

	p.Heading("%d models", len(models))
	for _, m := range models {
		p.Line("%-40s %s  %s", m.ID, time.Unix(m.Created, 0).UTC().Format(time.DateOnly), m.OwnedBy)
	}
	return nil
}

func runChat(ctx context.Context, a *app.App, args []string, p *printer) error {
	fs := newFlagSet("chat", p.errOut)
	model := fs.String("model", a.Config().OpenAI.Model, "chat model")
	if err := parse(fs, args); err != nil {
		return err
	}
	prompt, err := promptArg(fs)
	if err != nil {
		return err
	}

	chat, err := a.OpenAI()
	if err != nil {
		return err
	}
	answer, err := chat.GetResponse(ctx, prompt, *model)
	if err != nil {
		return err
	}
	p.Line("%s", answer)
	return nil
}

func runBalance(ctx context.Context, a *app.App, _ []string, p *printer) error {
	client, err := a.Stability()
	if err != nil {
		return err
	}
	balance, err := client.Balance(ctx)
	if err != nil {
		return err
	}
	p.Field("credits", fmt.Sprintf("%.2f", balance.Credits))
	return nil
}

func runEngines(ctx context.Context, a *app.App, _ []string, p *printer) error {
	client, err := a.Stability()
	if err != nil {
		return err
	}
	engines, err := client.Engines(ctx)
	if err != nil {
		return err
	}

	p.Heading("%d engines", len(engines))
	for _, e := range engines {
		p.Line("%-40s %s", e.ID, e.Name)
	}
	return nil
}

func runImage(ctx context.Context, a *app.App, args []string, p *printer) error {
	fs := newFlagSet("image", p.errOut)
	count := fs.Int("n", 1, "number of images")
	if err := parse(fs, args); err != nil {
		return err
	}
	prompt, err := promptArg(fs)
	if err != nil {
		return err
	}

	client, err := a.Stability()
	if err != nil {
		return err
	}
	written, err := client.GenerateImages(ctx, prompt, *count)
	if err != nil {
		return err
	}
	p.Line("wrote %d image(s) to %s", written, a.Config().Output.Dir)
	return nil
}

func runJob(ctx context.Context, a *app.App, args []string, p *printer) error {
	fs := newFlagSet("job", p.errOut)
	kind := fs.String("kind", "stability", "job kind: stability or midjourney")
	model := fs.String("model", "", "model override")
	if err := parse(fs, args); err != nil {
		return err
	}
	prompt, err := promptArg(fs)
	if err != nil {
		return err
	}

	var payload any
	switch *kind {
	case "stability":
		payload = picogen.NewStabilityRequest(prompt, orDefault(*model, picogen.StabilityXL))
	case "midjourney":
		payload = picogen.NewMidjourneyRequest(prompt, orDefault(*model, picogen.Midjourney52))
	default:
		return usageError{msg: fmt.Sprintf("unknown job kind %q (valid: stability, midjourney)", *kind)}
	}

	client, err := a.Picogen()
	if err != nil {
		return err
	}
	result, err := client.Run(ctx, payload)
	if result != nil {
		p.Field("job", result.Job.ID)
		p.Field("cost", result.Job.Cost)
		for _, f := range result.Files {
			p.Line("%s", f)
		}
	}
	if err != nil {
		return err
	}
	p.Line("saved %d image(s) to %s", len(result.Files), a.Config().Output.Dir)
	return nil
}

func runJobs(ctx context.Context, a *app.App, args []string, p *printer) error {
	fs := newFlagSet("jobs", p.errOut)
	download := fs.Bool("download", false, "download every listed result")
	if err := parse(fs, args); err != nil {
		return err
	}

	client, err := a.Picogen()
	if err != nil {
		return err
	}
	urls, err := client.ListCompletedResults(ctx)
	if err != nil {
		return err
	}
	p.Heading("%d completed result(s)", len(urls))
	for _, u := range urls {
		p.Line("%s", u)
	}

	if !*download || len(urls) == 0 {
		return nil
	}
	files, err := client.DownloadResults(ctx, urls)
	p.Line("saved %d image(s) to %s", len(files), a.Config().Output.Dir)
	return err
}

func runQuiz(ctx context.Context, a *app.App, args []string, p *printer) error {
	topics := args
	if len(topics) == 0 {
		topics = quiz.DefaultTopics
	}

	gen, err := a.Quiz()
	if err != nil {
		return err
	}
	err = gen.Generate(ctx, topics)
	p.Line("quizzes for %d topic(s) written to %s", len(topics), gen.Dir)
	return err
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
