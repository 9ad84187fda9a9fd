package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"
)

// Client communicates with a push gateway
type Client struct {
	httpclient *http.Client
	sendURL    string
	timeout    time.Duration
	backoff    func() backoff.BackOff
}

type sendRequest struct {
	Recipients []string          `json:"recipients"`
	JobID      string            `json:"jobID"`
	Type       string            `json:"type"`
	Text       string            `json:"text"`
	Payload    map[string]string `json:"payload,omitempty"`
}

// NewClient creates a push gateway client
func NewClient(sendURL string) (*Client, error) {
	if sendURL == "" {
		return nil, fmt.Errorf("no sendURL")
	}
	res := Client{sendURL: sendURL}
	res.timeout = time.Second * 30
	res.httpclient = &http.Client{Transport: newTransport()}
	res.backoff = newSimpleBackoff
	return &res, nil
}

// Send pushes one notification to the recipients
func (c *Client) Send(ctx context.Context, emails []string, jobID string, payload map[string]string, text string) error {
	if len(emails) == 0 {
		return nil
	}
	body, err := json.Marshal(sendRequest{Recipients: emails, JobID: jobID,
		Type: payload["notification_type"], Text: text, Payload: payload})
	if err != nil {
		return fmt.Errorf("can't marshal push: %w", err)
	}
	_, err = goapp.InvokeWithBackoff(ctx,
		func() (interface{}, bool, error) {
			ctx, cancelF := context.WithTimeout(ctx, c.timeout)
			defer cancelF()
			req, err := http.NewRequest(http.MethodPost, c.sendURL, bytes.NewReader(body))
			if err != nil {
				return nil, false, err
			}
			req.Header.Set("Content-Type", "application/json")
			req = req.WithContext(ctx)
			goapp.Log.Info().Str("url", req.URL.String()).Int("recipients", len(emails)).Msg("call")
			resp, err := c.httpclient.Do(req)
			if err != nil {
				return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't call: %w", err)
			}
			defer func() {
				_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
				_ = resp.Body.Close()
			}()
			if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
				err = fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
				return nil, goapp.IsRetryableCode(resp.StatusCode), err
			}
			return nil, false, nil
		}, c.backoff())
	return err
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 100
	res.MaxIdleConns = 50
	res.MaxIdleConnsPerHost = 50
	res.IdleConnTimeout = 90 * time.Second
	return res
}

func newSimpleBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	return backoff.WithMaxRetries(res, 3)
}
