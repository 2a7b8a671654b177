// Package classify implements the classify command.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/ragebait-block/internal/bootstrap"
	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/message"
	"github.com/dtnitsch/ragebait-block/pkg/scanner"
)

// Output is what the command prints.
type Output struct {
	Text    string         `json:"text"`
	Verdict models.Verdict `json:"verdict"`
	Toxic   bool           `json:"toxic"`
}

// ClassifyAction sends one runML message through the configured classifier
// and prints the verdict alongside the decision current thresholds give.
func ClassifyAction(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return cli.Exit("usage: ragebait classify <text>", 1)
	}

	cfg, logger, err := bootstrap.Configure(c)
	if err != nil {
		return err
	}
	rt, err := bootstrap.Open(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	current, err := rt.Settings.Load(c.Context)
	if err != nil {
		return err
	}

	out := classify(c.Context, message.NewHandler(rt.Classifier), text, current.Thresholds)
	if err := write(os.Stdout, out); err != nil {
		return err
	}
	if out.Verdict.Failed() {
		return cli.Exit("", 2)
	}
	return nil
}

func classify(ctx context.Context, h *message.Handler, text string, thresholds map[string]float64) Output {
	v, _ := h.Handle(ctx, models.Message{Type: models.MessageTypeRunML, Text: text})
	return Output{
		Text:    text,
		Verdict: v,
		Toxic:   !v.Failed() && scanner.IsToxic(v.Labels, thresholds),
	}
}

func write(w io.Writer, out Output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}
	return nil
}
