package lnurl

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/pkg/errors"
)

const (
	hrp = "lnurl"

	TagWithdrawRequest = "withdrawRequest"

	maxBodySize = 1 << 20
)

// Error is the LNURL error body: {"status": "ERROR", "reason": "..."}.
type Error struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (e *Error) Error() string {
	return "lnurl service error: " + e.Reason
}

// WithdrawResponse is the LUD-03 withdrawRequest answer of a service.
type WithdrawResponse struct {
	Tag                string `json:"tag"`
	Callback           string `json:"callback"`
	K1                 string `json:"k1"`
	MinWithdrawable    int64  `json:"minWithdrawable"`
	MaxWithdrawable    int64  `json:"maxWithdrawable"`
	DefaultDescription string `json:"defaultDescription"`

	callback *url.URL
}

// MaxSats is the advertised maximum rounded down to whole satoshis.
func (w *WithdrawResponse) MaxSats() int64 {
	return w.MaxWithdrawable / 1000
}

// CallbackURL returns the parsed callback with its own query parameters.
func (w *WithdrawResponse) CallbackURL() *url.URL {
	u := *w.callback
	return &u
}

// Decode turns a bech32 "lnurl1..." string, optionally prefixed with
// "lightning:", into its URL. LUD-17 lnurlw:// URIs and plain URLs are
// accepted too.
func Decode(lnurl string) (*url.URL, error) {
	s := strings.TrimSpace(lnurl)
	if strings.HasPrefix(strings.ToLower(s), "lightning:") {
		s = s[len("lightning:"):]
	}

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, hrp+"1"):
		prefix, data, err := bech32.DecodeNoLimit(lower)
		if err != nil {
			return nil, errors.Wrap(err, "invalid lnurl bech32")
		}
		if prefix != hrp {
			return nil, errors.Errorf("unexpected lnurl prefix %q", prefix)
		}
		raw, err := bech32.ConvertBits(data, 5, 8, false)
		if err != nil {
			return nil, errors.Wrap(err, "invalid lnurl payload")
		}
		s = string(raw)
	case strings.HasPrefix(lower, "lnurlw://"):
		s = "https://" + s[len("lnurlw://"):]
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, errors.Wrap(err, "invalid lnurl url")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, errors.Errorf("unsupported lnurl scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("lnurl url has no host")
	}
	return u, nil
}

// Encode bech32-encodes a URL as an "lnurl1..." string.
func Encode(rawURL string) (string, error) {
	data, err := bech32.ConvertBits([]byte(rawURL), 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "could not convert url")
	}
	return bech32.Encode(hrp, data)
}

// Client resolves and redeems LNURL-withdraw endpoints.
type Client struct {
	HTTPClient *http.Client
	// AllowInsecure permits plain http services outside .onion hosts.
	AllowInsecure bool
}

func NewClient(timeout time.Duration, allowInsecure bool) *Client {
	return &Client{
		HTTPClient:    &http.Client{Timeout: timeout},
		AllowInsecure: allowInsecure,
	}
}

func (c *Client) checkScheme(u *url.URL) error {
	if u.Scheme == "https" || c.AllowInsecure || strings.HasSuffix(u.Hostname(), ".onion") {
		return nil
	}
	return errors.Errorf("insecure lnurl service %s", u.Host)
}

// HandleWithdraw resolves lnurl and requires the service to answer with a
// withdrawRequest.
func (c *Client) HandleWithdraw(ctx context.Context, lnurl string) (*WithdrawResponse, error) {
	u, err := Decode(lnurl)
	if err != nil {
		return nil, err
	}
	if err := c.checkScheme(u); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var lnErr Error
	if json.Unmarshal(body, &lnErr) == nil && strings.EqualFold(lnErr.Status, "ERROR") {
		return nil, &lnErr
	}

	var res WithdrawResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, errors.Wrap(err, "malformed lnurl response")
	}
	if res.Tag != TagWithdrawRequest {
		return nil, errors.Errorf("expected %s, got tag %q", TagWithdrawRequest, res.Tag)
	}
	if res.K1 == "" {
		return nil, errors.New("withdraw response without k1")
	}
	if res.MaxWithdrawable < res.MinWithdrawable || res.MaxWithdrawable < 1000 {
		return nil, errors.Errorf("invalid withdrawable range %d..%d msat", res.MinWithdrawable, res.MaxWithdrawable)
	}

	cb, err := url.Parse(res.Callback)
	if err != nil || cb.Host == "" {
		return nil, errors.Errorf("invalid callback url %q", res.Callback)
	}
	if err := c.checkScheme(cb); err != nil {
		return nil, err
	}
	res.callback = cb

	return &res, nil
}

// SubmitInvoice asks the withdraw service to pay pr. The callback's own
// query parameters are kept; k1 and pr are added on top of them.
func (c *Client) SubmitInvoice(ctx context.Context, w *WithdrawResponse, pr string) error {
	u := w.CallbackURL()
	q := u.Query()
	q.Set("k1", w.K1)
	q.Set("pr", pr)
	u.RawQuery = q.Encode()

	_, err := c.get(ctx, u)
	return err
}

func (c *Client) get(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "could not reach %s", u.Host)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "could not read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("%s answered %s", u.Host, resp.Status)
	}
	return body, nil
}
