// Package geoip resolves a public IP address to a coarse location by trying
// a list of free lookup services in order until one answers.
package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
)

// DefaultTimeout bounds each provider attempt.
const DefaultTimeout = 5 * time.Second

// maxBodySize caps how much of a provider response is read.
const maxBodySize = 1 << 20

// ErrNoProvider is returned when every provider failed.
var ErrNoProvider = errors.New("no geoip provider answered")

// Info is what a provider reports for an address. Empty strings mean the
// provider did not say.
type Info struct {
	IP       string
	Country  string
	Region   string
	City     string
	Loc      string // "lat,lng"
	Timezone string
	ISP      string
}

// located reports whether the answer carries any location at all.
func (i Info) located() bool {
	return i.Country != "" || i.Region != "" || i.City != "" || i.Loc != ""
}

// Provider is one lookup service.
type Provider struct {
	Name string
	// URL returns the request URL for ip.
	URL func(ip string) string
	// Charset forces the body encoding when the service mislabels it.
	// Empty means trust the Content-Type header.
	Charset string
	// Decode maps a JSON body to Info. ok is false when the service
	// reported failure or the body has no usable location.
	Decode func(body map[string]any) (info Info, ok bool)
}

// Result labels passed to an Observer.
const (
	ResultOK         = "ok"
	ResultTransport  = "transport_error"
	ResultBadStatus  = "bad_status"
	ResultBadBody    = "bad_body"
	ResultNoLocation = "no_location"
)

// Observer is told the outcome of every provider attempt.
type Observer func(provider, result string)

// Client tries Providers in order.
type Client struct {
	HTTP      *http.Client
	Providers []Provider
	Timeout   time.Duration
	Observe   Observer
}

// NewClient returns a client over the default provider list. apiKey enables
// the ipgeolocation.io provider; it is skipped when empty.
func NewClient(timeout time.Duration, apiKey string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		HTTP:      &http.Client{},
		Providers: DefaultProviders(apiKey),
		Timeout:   timeout,
	}
}

// Lookup returns the first successful answer for ip. When every provider
// fails it returns ErrNoProvider with an Info holding only the IP.
func (c *Client) Lookup(ctx context.Context, ip string) (Info, error) {
	for _, p := range c.Providers {
		info, result, err := c.try(ctx, p, ip)
		c.observe(p.Name, result)
		if err != nil {
			log.Printf("GeoIP: %s failed for %s: %v", p.Name, ip, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		info.IP = ip
		return info, nil
	}
	return Info{IP: ip}, ErrNoProvider
}

func (c *Client) try(ctx context.Context, p Provider, ip string) (Info, string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL(ip), nil)
	if err != nil {
		return Info{}, ResultTransport, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Info{}, ResultTransport, err
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Info{}, ResultBadStatus, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := decodeBody(resp, p.Charset)
	if err != nil {
		return Info{}, ResultBadBody, err
	}

	info, ok := p.Decode(body)
	if !ok || !info.located() {
		return Info{}, ResultNoLocation, errors.New("no usable location in response")
	}
	return info, ResultOK, nil
}

func (c *Client) observe(provider, result string) {
	if c.Observe != nil {
		c.Observe(provider, result)
	}
}

// decodeBody transcodes the response to UTF-8 and parses it as a JSON object.
func decodeBody(resp *http.Response, forced string) (map[string]any, error) {
	var (
		r   io.Reader
		err error
	)
	limited := io.LimitReader(resp.Body, maxBodySize)
	if forced != "" {
		r, err = charset.NewReaderLabel(forced, limited)
	} else {
		r, err = charset.NewReader(limited, resp.Header.Get("Content-Type"))
	}
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("empty json object")
	}
	return body, nil
}
