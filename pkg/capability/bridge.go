package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omax404/aiko/pkg/logger"
)

const defaultBridgeTimeout = 10 * time.Second

// HTTPBridge delegates tasks to the remote agent gateway. Results come back
// asynchronously through the callback listener, so Delegate only reports
// whether the hand-off was accepted.
type HTTPBridge struct {
	webhookURL string
	agentName  string
	httpClient *http.Client
}

// BridgeOptions configures an HTTPBridge.
type BridgeOptions struct {
	WebhookURL string
	AgentName  string
	Timeout    time.Duration
}

func NewHTTPBridge(opts BridgeOptions) (*HTTPBridge, error) {
	url := strings.TrimSpace(opts.WebhookURL)
	if url == "" {
		return nil, fmt.Errorf("bridge webhook URL is required")
	}
	agent := strings.TrimSpace(opts.AgentName)
	if agent == "" {
		agent = "main"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultBridgeTimeout
	}
	return &HTTPBridge{
		webhookURL: url,
		agentName:  agent,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type delegateRequest struct {
	Agent string `json:"agent"`
	Task  string `json:"task"`
	Mode  string `json:"mode"`
}

// Delegate posts the task for autonomous execution and returns the gateway's
// acknowledgment text.
func (b *HTTPBridge) Delegate(ctx context.Context, task string) (string, error) {
	taskID := uuid.NewString()
	payload, err := json.Marshal(delegateRequest{
		Agent: b.agentName,
		Task:  task,
		Mode:  "autonomous",
	})
	if err != nil {
		return "", fmt.Errorf("marshal delegate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create delegate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.InfoCF("bridge", "Delegating task",
		map[string]any{"task_id": taskID, "task": task})

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send delegate request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("delegate request failed: status=%d", resp.StatusCode)
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "Task accepted for autonomous execution."
	}
	return msg, nil
}
