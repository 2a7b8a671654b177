// Package message implements the runML request/response contract between
// page scanners and the classification coordinator.
package message

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dtnitsch/ragebait-block/models"
)

// Classifier is satisfied by classifier.Gateway.
type Classifier interface {
	Classify(ctx context.Context, text string) models.Verdict
}

// Handler answers runML messages.
type Handler struct {
	classifier Classifier
}

func NewHandler(c Classifier) *Handler {
	return &Handler{classifier: c}
}

// Handle returns the verdict for a runML message. ok is false for any
// other message type, which gets no response.
func (h *Handler) Handle(ctx context.Context, msg models.Message) (v models.Verdict, ok bool) {
	if msg.Type != models.MessageTypeRunML {
		return models.Verdict{}, false
	}
	return h.classifier.Classify(ctx, msg.Text), true
}

// HandleJSON decodes a message and encodes the response. A nil response
// with a nil error means the message was ignored.
func (h *Handler) HandleJSON(ctx context.Context, raw []byte) ([]byte, error) {
	var msg models.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	v, ok := h.Handle(ctx, msg)
	if !ok {
		return nil, nil
	}
	return json.Marshal(v)
}

// Client sends runML messages to a coordinator's /api/message endpoint.
// It satisfies scanner.Classifier.
type Client struct {
	url    string
	client *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{url: strings.TrimRight(baseURL, "/") + "/api/message", client: client}
}

// Classify never fails; transport errors come back as Verdict.Error.
func (c *Client) Classify(ctx context.Context, text string) models.Verdict {
	v, err := c.send(ctx, models.Message{Type: models.MessageTypeRunML, Text: text})
	if err != nil {
		return models.Verdict{Error: err.Error()}
	}
	return v
}

func (c *Client) send(ctx context.Context, msg models.Message) (models.Verdict, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return models.Verdict{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Verdict{}, fmt.Errorf("coordinator returned status %d", resp.StatusCode)
	}

	var v models.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return models.Verdict{}, err
	}
	return v, nil
}
