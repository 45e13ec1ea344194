// Package buttondown is a minimal client for the Buttondown mailing-list
// API, plus the HTTP endpoint that lets the widget subscribe a user to
// updates.
package buttondown

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// DefaultBaseURL is the production Buttondown API endpoint.
const DefaultBaseURL = "https://api.buttondown.email/v1"

// ErrAlreadySubscribed indicates the address is already on the list; the
// caller should update the existing subscriber instead.
var ErrAlreadySubscribed = errors.New("buttondown: already subscribed")

// API is the mailing-list collaborator surface used by the subscribe
// endpoint.
type API interface {
	Subscribe(ctx context.Context, email, topicID, topicName string) error
	UpdateSubscriber(ctx context.Context, email, topicID, topicName string) error
}

// Client talks to the Buttondown REST API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	lg *slog.Logger
}

// NewClient creates a client with the given API key.
func NewClient(apiKey string, lg *slog.Logger) *Client {
	if lg == nil {
		lg = slog.Default()
	}
	return &Client{BaseURL: DefaultBaseURL, APIKey: apiKey, lg: lg}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// do performs an authenticated request, retrying transient failures
// (network errors and 5xx responses) with a short fibonacci backoff.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("buttondown: marshal request: %w", err)
		}
	}

	var resp *http.Response
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Token "+c.APIKey)
		req.Header.Set("Content-Type", "application/json")

		r, err := c.client().Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		if r.StatusCode >= 500 {
			r.Body.Close()
			return retry.RetryableError(fmt.Errorf("buttondown: %s %s: %s", method, path, r.Status))
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Subscribe adds email to the list, tagged with topicID.  An address that is
// already on the list yields ErrAlreadySubscribed.
func (c *Client) Subscribe(ctx context.Context, email, topicID, topicName string) error {
	body := map[string]any{
		"email_address": email,
		"tags":          []string{topicID},
		"metadata": map[string]string{
			"topicName":    topicName,
			"source":       "just-cancel",
			"subscribedAt": time.Now().UTC().Format(time.RFC3339),
		},
	}
	resp, err := c.do(ctx, http.MethodPost, "/subscribers", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return c.apiError(resp)
}

// UpdateSubscriber tags an existing subscriber with an additional topic.
func (c *Client) UpdateSubscriber(ctx context.Context, email, topicID, topicName string) error {
	resp, err := c.do(ctx, http.MethodGet, "/subscribers?email="+url.QueryEscape(email), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("buttondown: find subscriber: %s", resp.Status)
	}
	var list struct {
		Results []struct {
			ID       string            `json:"id"`
			Tags     []string          `json:"tags"`
			Metadata map[string]string `json:"metadata"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("buttondown: decode subscriber list: %w", err)
	}
	if len(list.Results) == 0 {
		return errors.New("buttondown: subscriber not found")
	}
	sub := list.Results[0]

	tags := sub.Tags
	if !contains(tags, topicID) {
		tags = append(tags, topicID)
	}
	meta := sub.Metadata
	if meta == nil {
		meta = make(map[string]string)
	}
	topicData, _ := json.Marshal(map[string]string{
		"name":         topicName,
		"subscribedAt": time.Now().UTC().Format(time.RFC3339),
	})
	meta["topic_"+topicID] = string(topicData)
	meta["source"] = "just-cancel"

	upd, err := c.do(ctx, http.MethodPatch, "/subscribers/"+sub.ID, map[string]any{
		"tags":     tags,
		"metadata": meta,
	})
	if err != nil {
		return err
	}
	defer upd.Body.Close()
	if upd.StatusCode >= 200 && upd.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("buttondown: update subscriber: %s", upd.Status)
}

// apiError turns a non-2xx API response into an error, mapping the
// "already subscribed" family of responses to ErrAlreadySubscribed.
func (c *Client) apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	msg := string(raw)
	var detail struct {
		Detail string `json:"detail"`
		Code   string `json:"code"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil {
		if detail.Detail != "" {
			msg = detail.Detail
		} else if detail.Code != "" {
			msg = detail.Code
		}
	}
	if strings.Contains(strings.ToLower(msg), "already") {
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, msg)
	}
	return fmt.Errorf("buttondown: subscribe: %s", msg)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
