package practitioner

import (
	"context"
	"errors"
	"testing"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/npi"
)

type fakeRegistry struct {
	params  npi.SearchParams
	results []npi.Practitioner
	err     error
}

func (f *fakeRegistry) Search(_ context.Context, p npi.SearchParams) ([]npi.Practitioner, error) {
	f.params = p
	return f.results, f.err
}

func TestSearch(t *testing.T) {
	t.Run("requires a filter", func(t *testing.T) {
		svc := NewService(&fakeRegistry{})
		if _, err := svc.Search(context.Background(), npi.SearchParams{Limit: 10}); !errors.Is(err, ErrNoFilter) {
			t.Fatalf("err = %v, want ErrNoFilter", err)
		}
	})

	t.Run("passes filters through", func(t *testing.T) {
		registry := &fakeRegistry{results: []npi.Practitioner{{NPI: "1234567890", Name: "Dana Kim", Specialty: "Cardiology"}}}
		svc := NewService(registry)

		got, err := svc.Search(context.Background(), npi.SearchParams{State: "CA", Specialty: "cardiology"})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if registry.params.State != "CA" || registry.params.Specialty != "cardiology" {
			t.Errorf("params = %+v", registry.params)
		}
		if len(got) != 1 || got[0].NPI != "1234567890" {
			t.Errorf("results = %+v", got)
		}
	})

	t.Run("registry errors surface", func(t *testing.T) {
		svc := NewService(&fakeRegistry{err: errors.New("registry down")})
		if _, err := svc.Search(context.Background(), npi.SearchParams{City: "Fresno"}); err == nil {
			t.Fatal("expected error")
		}
	})
}
