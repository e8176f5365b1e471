// Package npi queries the NPPES registry for practitioners to refer to.
package npi

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

// SearchParams narrows a registry lookup. All fields are optional but at
// least one location or specialty filter should be set to keep results
// meaningful.
type SearchParams struct {
	City       string
	State      string
	PostalCode string
	Specialty  string
	Limit      int
}

// Practitioner is a normalized registry hit.
type Practitioner struct {
	NPI        string `json:"npi"`
	Name       string `json:"name"`
	Credential string `json:"credential,omitempty"`
	Specialty  string `json:"specialty,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type registryResponse struct {
	ResultCount int `json:"result_count"`
	Results     []struct {
		Number string `json:"number"`
		Basic  struct {
			FirstName        string `json:"first_name"`
			LastName         string `json:"last_name"`
			Credential       string `json:"credential"`
			OrganizationName string `json:"organization_name"`
		} `json:"basic"`
		Taxonomies []struct {
			Desc    string `json:"desc"`
			Primary bool   `json:"primary"`
		} `json:"taxonomies"`
		Addresses []struct {
			AddressPurpose  string `json:"address_purpose"`
			Address1        string `json:"address_1"`
			City            string `json:"city"`
			State           string `json:"state"`
			PostalCode      string `json:"postal_code"`
			TelephoneNumber string `json:"telephone_number"`
		} `json:"addresses"`
	} `json:"results"`
}

// Search queries the registry and normalizes the hits. Individual providers
// only (enumeration type NPI-1); location addresses are preferred over
// mailing addresses.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]Practitioner, error) {
	limit := p.Limit
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	params := url.Values{
		"version":          {"2.1"},
		"enumeration_type": {"NPI-1"},
		"address_purpose":  {"LOCATION"},
		"limit":            {fmt.Sprintf("%d", limit)},
	}
	if p.City != "" {
		params.Set("city", p.City)
	}
	if p.State != "" {
		params.Set("state", p.State)
	}
	if p.PostalCode != "" {
		params.Set("postal_code", p.PostalCode)
	}
	if p.Specialty != "" {
		params.Set("taxonomy_description", p.Specialty)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("npi registry request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("npi registry error %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var out registryResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode npi response: %w", err)
	}

	practitioners := make([]Practitioner, 0, len(out.Results))
	for _, r := range out.Results {
		p := Practitioner{
			NPI:        r.Number,
			Credential: r.Basic.Credential,
		}
		if r.Basic.OrganizationName != "" {
			p.Name = r.Basic.OrganizationName
		} else {
			p.Name = strings.TrimSpace(r.Basic.FirstName + " " + r.Basic.LastName)
		}
		for _, tax := range r.Taxonomies {
			if tax.Primary {
				p.Specialty = tax.Desc
				break
			}
		}
		if p.Specialty == "" && len(r.Taxonomies) > 0 {
			p.Specialty = r.Taxonomies[0].Desc
		}
		for _, addr := range r.Addresses {
			if addr.AddressPurpose == "LOCATION" {
				p.Address = addr.Address1
				p.City = addr.City
				p.State = addr.State
				p.PostalCode = addr.PostalCode
				p.Phone = addr.TelephoneNumber
				break
			}
		}
		practitioners = append(practitioners, p)
	}
	return practitioners, nil
}
