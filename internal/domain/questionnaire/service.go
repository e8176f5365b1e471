package questionnaire

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

// List returns summaries of the active questionnaires, categorized for
// prompt building. Entries that fail to decode are skipped.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	bundle, err := s.store.Search(ctx, "Questionnaire", url.Values{
		"_count": {"100"},
		"status": {"active"},
	})
	if err != nil {
		return nil, fmt.Errorf("search questionnaires: %w", err)
	}

	summaries := make([]Summary, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		q, err := ParseQuestionnaire(entry.Resource)
		if err != nil {
			continue
		}
		summary := Summary{
			ID:          q.ID,
			Name:        q.DisplayName(),
			Title:       q.Title,
			Description: q.Description,
			Type:        Categorize(q),
		}
		if len(q.Code) > 0 {
			summary.Code = q.Code[0].Code
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Get reads one questionnaire definition by id.
func (s *Service) Get(ctx context.Context, id string) (*Questionnaire, error) {
	raw, err := s.store.ReadResource(ctx, "Questionnaire", id)
	if err != nil {
		return nil, fmt.Errorf("read questionnaire %s: %w", id, err)
	}
	return ParseQuestionnaire(raw)
}

// Autofill produces linkId→value prefills for a form. When the extracted
// resource already is a QuestionnaireResponse its answers are taken as-is;
// any other resource goes through the field matcher, and questions the
// matcher leaves open get a gap-filler value so every leaf has an entry.
func (s *Service) Autofill(ctx context.Context, questionnaireID string, resource json.RawMessage, patientCtx map[string]string) (map[string]any, error) {
	q, err := s.Get(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}

	var rt fhir.Resource
	if len(resource) > 0 && json.Unmarshal(resource, &rt) == nil && rt.ResourceType == "QuestionnaireResponse" {
		resp, err := ParseResponse(resource)
		if err != nil {
			return nil, err
		}
		return Flatten(resp.Item), nil
	}

	matched := MatchAll(q, resource, patientCtx)
	flat := make(map[string]any, len(matched))
	for k, v := range matched {
		flat[k] = v
	}

	fillCtx := ContextFromMap(patientCtx)
	var walk func(items []Item)
	walk = func(items []Item) {
		for _, item := range items {
			if len(item.Item) > 0 {
				walk(item.Item)
			}
			if item.LinkID == "" || item.Type == "group" || item.Type == "display" {
				continue
			}
			if _, ok := flat[item.LinkID]; !ok {
				flat[item.LinkID] = DummyValue(item, fillCtx)
			}
		}
	}
	walk(q.Item)
	return flat, nil
}
