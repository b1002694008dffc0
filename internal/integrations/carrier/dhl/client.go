// Package dhl is the DHL Express (MyDHL API) adapter.
package dhl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/pkg/errors"
)

const (
	ProviderName   = "DHL"
	DefaultBaseURL = "https://express.api.dhl.com/mydhlapi"
)

type Config struct {
	BaseURL       string
	APIKey        string
	APISecret     string
	AccountNumber string
	Timeout       time.Duration
}

type Client struct {
	cfg   Config
	httpc *http.Client
	now   func() time.Time
}

type Option func(*Client)

// WithClock overrides the clock used for planned shipping dates and fallback delivery dates.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: cfg.Timeout},
		now:   time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Name() string { return ProviderName }

func (c *Client) checkCredentials(op string) error {
	switch {
	case c.cfg.APIKey == "":
		return carrier.NotConfigured(ProviderName, op, "DHL api key")
	case c.cfg.APISecret == "":
		return carrier.NotConfigured(ProviderName, op, "DHL api secret")
	case c.cfg.AccountNumber == "":
		return carrier.NotConfigured(ProviderName, op, "DHL account number")
	}
	return nil
}

// problem is DHL's RFC 7807 error body.
type problem struct {
	Instance string `json:"instance"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Message  string `json:"message"`
	Status   any    `json:"status"`
}

func problemMessage(body []byte) string {
	var p problem
	if err := json.Unmarshal(body, &p); err != nil {
		return ""
	}
	for _, s := range []string{p.Detail, p.Message, p.Title} {
		if s != "" {
			return s
		}
	}
	return ""
}

// do sends one request and decodes a 2xx body into out. Any failure comes back as *carrier.Error.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	if err := c.checkCredentials(op); err != nil {
		return err
	}

	u, err := url.Parse(c.cfg.BaseURL + path)
	if err != nil {
		return carrier.WrapError(ProviderName, op, errors.Wrap(err, "parse base url"))
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return carrier.WrapError(ProviderName, op, errors.Wrap(err, "encode request"))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return carrier.WrapError(ProviderName, op, errors.Wrap(err, "new request"))
	}
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return carrier.WrapError(ProviderName, op, errors.Wrap(err, "do request"))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return carrier.WrapError(ProviderName, op, errors.Wrap(err, "read body"))
	}

	if resp.StatusCode/100 != 2 {
		return carrier.HTTPError(ProviderName, op, resp.StatusCode, raw, problemMessage(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return carrier.WrapError(ProviderName, op, errors.Wrap(err, "decode"))
	}
	return nil
}

// flexInt accepts both 3 and "3", DHL uses either depending on the endpoint.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n := json.Number(s)
	v, err := n.Int64()
	if err != nil {
		fl, ferr := n.Float64()
		if ferr != nil {
			return errors.Wrapf(err, "flexInt %q", s)
		}
		v = int64(fl)
	}
	*f = flexInt(v)
	return nil
}

// plannedShippingDate is tomorrow at noon in DHL's "... GMT+hh:mm" format.
func (c *Client) plannedShippingDate() string {
	t := c.now().Add(24 * time.Hour)
	t = time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, t.Location())
	return t.Format("2006-01-02T15:04:05 GMT-07:00")
}
