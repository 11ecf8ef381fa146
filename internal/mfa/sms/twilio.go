// Package sms delivers text messages through the Twilio REST API.
package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 15 * time.Second
	defaultBaseURL = "https://api.twilio.com/2010-04-01"
)

// TwilioClient sends SMS via Twilio's Messages resource.
type TwilioClient struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	HTTPClient *http.Client
}

// NewTwilioClient returns a client for the given account. An empty baseURL uses the public Twilio API.
func NewTwilioClient(accountSID, authToken, from, baseURL string) *TwilioClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &TwilioClient{
		AccountSID: accountSID,
		AuthToken:  authToken,
		From:       from,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Configured reports whether credentials and a sender number are set.
func (c *TwilioClient) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

// Send delivers body to the E.164 number to. Does not log the message body.
func (c *TwilioClient) Send(ctx context.Context, to, body string) error {
	if !c.Configured() {
		return fmt.Errorf("sms: twilio not configured")
	}
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.From)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.BaseURL, url.PathEscape(c.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.AccountSID, c.AuthToken)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
