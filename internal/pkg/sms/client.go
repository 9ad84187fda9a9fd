package sms

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
	"github.com/spf13/viper"
)

// Client communicates with an sms gateway
type Client struct {
	httpclient *http.Client
	sendURL    string
	sender     string
	timeout    time.Duration
	backoff    func() backoff.BackOff
}

type sendRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Text string `json:"text"`
}

// NewClient creates an sms gateway client
func NewClient(c *viper.Viper) (*Client, error) {
	res := Client{}
	res.sendURL = c.GetString("sms.url")
	if res.sendURL == "" {
		return nil, fmt.Errorf("no sms.url")
	}
	res.sender = c.GetString("sms.sender")
	res.timeout = time.Second * 20
	res.httpclient = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	res.backoff = newSimpleBackoff
	goapp.Log.Info().Str("url", res.sendURL).Msg("sms client")
	return &res, nil
}

// Send sends one sms
func (c *Client) Send(ctx context.Context, number, text string) error {
	if number == "" {
		return nil
	}
	body, err := json.Marshal(sendRequest{To: number, From: c.sender, Text: text})
	if err != nil {
		return fmt.Errorf("can't marshal sms: %w", err)
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
			goapp.Log.Info().Str("url", req.URL.String()).Msg("call")
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

func newSimpleBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	return backoff.WithMaxRetries(res, 3)
}
