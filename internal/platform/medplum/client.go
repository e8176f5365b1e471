// Package medplum is a thin FHIR R4 client for a Medplum-compatible store,
// authenticated with OAuth2 client credentials. It carries raw JSON in and
// out; callers decode into whatever shape they expect.
package medplum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/fhir"
)

// StoreError is returned when the store rejects an operation. The
// OperationOutcome diagnostics, when present, are preserved so the rejection
// reason can be shown to the clinician.
type StoreError struct {
	StatusCode  int
	Diagnostics string
}

func (e *StoreError) Error() string {
	if e.Diagnostics != "" {
		return fmt.Sprintf("store rejected request (%d): %s", e.StatusCode, e.Diagnostics)
	}
	return fmt.Sprintf("store rejected request (%d)", e.StatusCode)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the given FHIR base URL. The token endpoint is
// derived from the base URL the way Medplum lays out its API
// (…/oauth2/token beside …/fhir/R4).
func New(baseURL, clientID, clientSecret string) *Client {
	base := strings.TrimSuffix(baseURL, "/")
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     base + "/oauth2/token",
	}
	return &Client{
		baseURL: base + "/fhir/R4",
		http:    cc.Client(context.Background()),
	}
}

// NewWithHTTPClient is used by tests to bypass the OAuth2 transport.
func NewWithHTTPClient(fhirBaseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimSuffix(fhirBaseURL, "/"), http: hc}
}

// ReadResource fetches a single resource by type and id.
func (c *Client) ReadResource(ctx context.Context, resourceType, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s", c.baseURL, resourceType, url.PathEscape(id)), nil)
}

// Search runs a search over the given resource type and returns the decoded
// search-set Bundle. Entries stay raw for the caller.
func (c *Client) Search(ctx context.Context, resourceType string, params url.Values) (*fhir.Bundle, error) {
	u := fmt.Sprintf("%s/%s", c.baseURL, resourceType)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var bundle fhir.Bundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		return nil, fmt.Errorf("decode search bundle: %w", err)
	}
	return &bundle, nil
}

// CreateResource posts a new resource and returns the stored representation,
// which includes the server-assigned id.
func (c *Client) CreateResource(ctx context.Context, resourceType string, resource json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.baseURL, resourceType), resource)
}

func (c *Client) do(ctx context.Context, method, url string, body json.RawMessage) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/fhir+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/fhir+json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fhir request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read fhir response: %w", err)
	}

	if resp.StatusCode >= 400 {
		serr := &StoreError{StatusCode: resp.StatusCode}
		var outcome fhir.OperationOutcome
		if json.Unmarshal(payload, &outcome) == nil && outcome.ResourceType == "OperationOutcome" {
			serr.Diagnostics = outcome.Diagnostics()
		}
		return nil, serr
	}
	return payload, nil
}

// Timeout for outbound store calls when the caller's context has no deadline.
const defaultTimeout = 30 * time.Second

// WithDefaultTimeout derives a context bounded by the default store timeout
// unless the parent already carries a deadline.
func WithDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultTimeout)
}
