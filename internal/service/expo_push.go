package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"habitchallenge/internal/model"
)

// ExpoPushClient sends notifications through Expo's push API. Expo tokens look
// like "ExponentPushToken[xxx]" and need no server credentials.
type ExpoPushClient struct {
	httpClient *http.Client
	endpoint   string
}

type ExpoPushMessage struct {
	To       []string          `json:"to"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

type ExpoPushResponse struct {
	Data []ExpoPushTicket `json:"data"`
}

type ExpoPushTicket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"` // "DeviceNotRegistered", "MessageTooBig", ...
	} `json:"details,omitempty"`
}

const (
	ExpoPushURL = "https://exp.host/--/api/v2/push/send"

	// expoBatchSize is the most recipients Expo accepts per request.
	expoBatchSize = 100
)

func NewExpoPushClient() *ExpoPushClient {
	return NewExpoPushClientWithEndpoint(ExpoPushURL)
}

// NewExpoPushClientWithEndpoint points the client at another push endpoint.
func NewExpoPushClientWithEndpoint(endpoint string) *ExpoPushClient {
	return &ExpoPushClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   endpoint,
	}
}

// SendToTokens skips tokens that are not in Expo format and sends the rest in
// batches. A batch failing stops the send and returns its error.
func (c *ExpoPushClient) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	valid := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if model.IsExpoToken(token) {
			valid = append(valid, token)
		} else {
			log.Printf("[ExpoPush] Skipping invalid token format: %s", token[:min(20, len(token))])
		}
	}
	if len(valid) == 0 {
		return nil
	}

	for start := 0; start < len(valid); start += expoBatchSize {
		end := min(start+expoBatchSize, len(valid))
		if err := c.send(ctx, ExpoPushMessage{
			To:       valid[start:end],
			Title:    title,
			Body:     body,
			Data:     data,
			Sound:    "default",
			Priority: "high",
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *ExpoPushClient) send(ctx context.Context, message ExpoPushMessage) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expo api error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var pushResp ExpoPushResponse
	if err := json.Unmarshal(respBody, &pushResp); err != nil {
		// The request was accepted; only the ticket summary is lost.
		log.Printf("[ExpoPush] Failed to parse response: %v", err)
		return nil
	}

	failCount := 0
	for i, ticket := range pushResp.Data {
		if ticket.Status != "ok" {
			failCount++
			log.Printf("[ExpoPush] Token %d failed: %s (error: %s)", i, ticket.Message, ticket.Details.Error)
		}
	}

	log.Printf("[ExpoPush] Sent to %d tokens: %d success, %d failed",
		len(message.To), len(pushResp.Data)-failCount, failCount)
	return nil
}
