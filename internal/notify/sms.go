package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTwilioURL = "https://api.twilio.com/2010-04-01"

// smsMaxLen is Twilio's limit on a message body, in characters.
const smsMaxLen = 1600

type SMSOptions struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
}

// SMS sends the summary as a text message through Twilio.
type SMS struct {
	opts SMSOptions
	http *http.Client
}

func NewSMS(opts SMSOptions) (*SMS, error) {
	opts.AccountSID = strings.TrimSpace(opts.AccountSID)
	opts.AuthToken = strings.TrimSpace(opts.AuthToken)
	if opts.AccountSID == "" || opts.AuthToken == "" {
		return nil, fmt.Errorf("sms: missing twilio account sid or auth token")
	}
	if strings.TrimSpace(opts.From) == "" || strings.TrimSpace(opts.To) == "" {
		return nil, fmt.Errorf("sms: missing from or to number")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultTwilioURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "dotgrab/notify-sms"
	}
	return &SMS{opts: opts, http: &http.Client{Timeout: opts.Timeout}}, nil
}

func (s *SMS) Name() string { return "sms" }

// Send ignores the subject; a text message only carries the body.
func (s *SMS) Send(ctx context.Context, _, body string) error {
	form := url.Values{}
	form.Set("From", strings.TrimSpace(s.opts.From))
	form.Set("To", strings.TrimSpace(s.opts.To))
	form.Set("Body", truncate("dotgrab: "+body, smsMaxLen))

	u := strings.TrimRight(s.opts.BaseURL, "/") + "/Accounts/" + url.PathEscape(s.opts.AccountSID) + "/Messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.opts.AccountSID, s.opts.AuthToken)
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	req.Header.Set("accept", "application/json")
	req.Header.Set("user-agent", s.opts.UserAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("sms: %w", err)
	}
	if resp.StatusCode/100 == 2 {
		return nil
	}

	var decoded twilioError
	if json.Unmarshal(b, &decoded) == nil && decoded.Message != "" {
		return fmt.Errorf("sms: http %d: %s (code %d)", resp.StatusCode, decoded.Message, decoded.Code)
	}
	return fmt.Errorf("sms: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
