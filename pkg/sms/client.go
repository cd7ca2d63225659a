// Package sms provides a client for an HTTP SMS gateway. The gateway
// contract is a JSON POST with an API key header; any non-2xx response is a
// delivery failure.
package sms

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Client sends notifications through an SMS gateway.
type Client struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

// NewClient creates a new SMS gateway client.
func NewClient(apiURL, apiKey, from string) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Text string `json:"text"`
}

// Send delivers an SMS to the given phone number. SMS has no subject line,
// so the title and message are joined. Timeouts are reported as "timeout".
func (c *Client) Send(to, title, msg string) error {
	reqBody := sendRequest{
		To:   to,
		From: c.from,
		Text: title + ": " + msg,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		var t interface{ Timeout() bool }
		if errors.As(err, &t) && t.Timeout() {
			return errors.New("timeout")
		}

		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms gateway error: %s", resp.Status)
	}

	return nil
}
