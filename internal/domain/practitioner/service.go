// Package practitioner exposes referral-target lookup against the public
// NPPES registry.
package practitioner

import (
	"context"
	"errors"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/npi"
)

// ErrNoFilter is returned when a search would sweep the whole registry.
var ErrNoFilter = errors.New("at least one of city, state, postal code or specialty is required")

// Registry is the subset of the NPPES client the service needs.
type Registry interface {
	Search(ctx context.Context, p npi.SearchParams) ([]npi.Practitioner, error)
}

type Service struct {
	registry Registry
}

func NewService(registry Registry) *Service {
	return &Service{registry: registry}
}

// Search looks up individual providers matching the filters.
func (s *Service) Search(ctx context.Context, params npi.SearchParams) ([]npi.Practitioner, error) {
	if params.City == "" && params.State == "" && params.PostalCode == "" && params.Specialty == "" {
		return nil, ErrNoFilter
	}
	return s.registry.Search(ctx, params)
}
