package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/MSalah73/zero2prod/internal/domain"
)

// Client sends issue emails through a Postmark-style HTTP API.
type Client struct {
	httpClient         *http.Client
	baseURL            *url.URL
	sender             domain.SubscriberEmail
	authorizationToken string
}

type sendEmailRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HTMLBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// NewClient creates an email client. The timeout bounds each send end to
// end, connection included.
func NewClient(baseURL string, sender domain.SubscriberEmail, authorizationToken string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid email API base url %q: %w", baseURL, err)
	}
	return &Client{
		httpClient:         &http.Client{Timeout: timeout},
		baseURL:            parsed,
		sender:             sender,
		authorizationToken: authorizationToken,
	}, nil
}

// SendEmail delivers one email to a single recipient. Any transport error,
// timeout, or non-2xx status is returned to the caller; the send may or may
// not have reached the recipient in those cases.
func (c *Client) SendEmail(ctx context.Context, recipient domain.SubscriberEmail, subject, htmlContent, textContent string) error {
	endpoint := c.baseURL.JoinPath("email")

	body, err := json.Marshal(sendEmailRequest{
		From:     c.sender.String(),
		To:       recipient.String(),
		Subject:  subject,
		HTMLBody: htmlContent,
		TextBody: textContent,
	})
	if err != nil {
		return fmt.Errorf("failed to encode send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.authorizationToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}
	return nil
}
