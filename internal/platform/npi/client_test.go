package npi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleResponse = `{
  "result_count": 2,
  "results": [
    {
      "number": "1234567890",
      "basic": {"first_name": "JANE", "last_name": "DOE", "credential": "MD"},
      "taxonomies": [
        {"desc": "Internal Medicine", "primary": false},
        {"desc": "Cardiovascular Disease", "primary": true}
      ],
      "addresses": [
        {"address_purpose": "MAILING", "address_1": "PO BOX 1", "city": "AUSTIN", "state": "TX"},
        {"address_purpose": "LOCATION", "address_1": "100 Main St", "city": "AUSTIN", "state": "TX", "postal_code": "78701", "telephone_number": "512-555-0100"}
      ]
    },
    {
      "number": "1098765432",
      "basic": {"organization_name": "HEART CLINIC PA"},
      "taxonomies": [{"desc": "Cardiovascular Disease", "primary": true}],
      "addresses": []
    }
  ]
}`

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("version") != "2.1" {
			t.Errorf("version = %q", q.Get("version"))
		}
		if q.Get("address_purpose") != "LOCATION" {
			t.Errorf("address_purpose = %q", q.Get("address_purpose"))
		}
		if q.Get("taxonomy_description") != "cardiology" {
			t.Errorf("taxonomy_description = %q", q.Get("taxonomy_description"))
		}
		if q.Get("city") != "Austin" {
			t.Errorf("city = %q", q.Get("city"))
		}
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.Search(context.Background(), SearchParams{City: "Austin", State: "TX", Specialty: "cardiology"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results = %d, want 2", len(got))
	}

	first := got[0]
	if first.Name != "JANE DOE" || first.Credential != "MD" {
		t.Errorf("name/credential = %q/%q", first.Name, first.Credential)
	}
	if first.Specialty != "Cardiovascular Disease" {
		t.Errorf("specialty = %q, want primary taxonomy", first.Specialty)
	}
	if first.Address != "100 Main St" || first.Phone != "512-555-0100" {
		t.Errorf("expected LOCATION address, got %q / %q", first.Address, first.Phone)
	}

	if got[1].Name != "HEART CLINIC PA" {
		t.Errorf("org name = %q", got[1].Name)
	}
}

func TestSearch_RegistryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Search(context.Background(), SearchParams{State: "TX"}); err == nil {
		t.Fatal("expected error from registry failure")
	}
}
