package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/fhir"
)

// FHIRStore is the slice of the EMR client this package needs.
type FHIRStore interface {
	ReadResource(ctx context.Context, resourceType, id string) (json.RawMessage, error)
	Search(ctx context.Context, resourceType string, params url.Values) (*fhir.Bundle, error)
}

type Service struct {
	store FHIRStore
}

func NewService(store FHIRStore) *Service {
	return &Service{store: store}
}

// Get reads one patient from the store and normalizes it.
func (s *Service) Get(ctx context.Context, id string) (*Profile, error) {
	raw, err := s.store.ReadResource(ctx, "Patient", id)
	if err != nil {
		return nil, fmt.Errorf("read patient %s: %w", id, err)
	}
	return FromFHIR(raw)
}

// Search finds patients by name. Entries that fail to normalize are skipped
// rather than failing the whole search.
func (s *Service) Search(ctx context.Context, name string, limit int) ([]*Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	params := url.Values{"_count": {fmt.Sprintf("%d", limit)}}
	if name != "" {
		params.Set("name", name)
	}

	bundle, err := s.store.Search(ctx, "Patient", params)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}

	profiles := make([]*Profile, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		profile, err := FromFHIR(entry.Resource)
		if err != nil {
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}
