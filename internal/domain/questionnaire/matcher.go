package questionnaire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/fhir"
)

// ExtractMappings flattens the fields of an extracted order resource, plus
// patient demographics, into a key table the matcher searches. Unknown
// resource types contribute nothing beyond demographics; absence of a key is
// how "no value" is represented.
func ExtractMappings(resource json.RawMessage, patientCtx map[string]string) map[string]string {
	mappings := map[string]string{}
	for k, v := range patientCtx {
		if v != "" {
			mappings[k] = v
		}
	}
	if len(resource) == 0 {
		return mappings
	}

	var rt fhir.Resource
	if err := json.Unmarshal(resource, &rt); err != nil {
		return mappings
	}

	switch rt.ResourceType {
	case "ServiceRequest":
		var sr struct {
			Code               fhir.CodeableConcept   `json:"code"`
			Priority           string                 `json:"priority"`
			BodySite           []fhir.CodeableConcept `json:"bodySite"`
			ReasonCode         []fhir.CodeableConcept `json:"reasonCode"`
			Category           []fhir.CodeableConcept `json:"category"`
			PatientInstruction string                 `json:"patientInstruction"`
			Note               []struct {
				Text string `json:"text"`
			} `json:"note"`
		}
		if json.Unmarshal(resource, &sr) != nil {
			return mappings
		}
		if code := sr.Code.Label(); code != "" {
			mappings["test_name"] = code
			mappings["study_name"] = code
			mappings["exam_type"] = code
		}
		if sr.Priority != "" {
			mappings["priority"] = sr.Priority
		}
		if len(sr.BodySite) > 0 {
			if site := sr.BodySite[0].Label(); site != "" {
				mappings["body_site"] = site
				mappings["region"] = site
				mappings["area"] = site
			}
		}
		if len(sr.ReasonCode) > 0 {
			if reason := sr.ReasonCode[0].Label(); reason != "" {
				mappings["indication"] = reason
				mappings["reason"] = reason
				mappings["clinical_indication"] = reason
			}
		}
		if len(sr.Category) > 0 {
			if cat := sr.Category[0].Label(); cat != "" {
				mappings["category"] = cat
			}
		}
		if sr.PatientInstruction != "" {
			mappings["instructions"] = sr.PatientInstruction
		}
		if len(sr.Note) > 0 && sr.Note[0].Text != "" {
			mappings["notes"] = sr.Note[0].Text
			mappings["comments"] = sr.Note[0].Text
		}

	case "MedicationRequest":
		var mr struct {
			MedicationCodeableConcept fhir.CodeableConcept `json:"medicationCodeableConcept"`
			DosageInstruction         []struct {
				Text   string               `json:"text"`
				Route  fhir.CodeableConcept `json:"route"`
				Timing struct {
					Repeat struct {
						Frequency int `json:"frequency"`
					} `json:"repeat"`
				} `json:"timing"`
			} `json:"dosageInstruction"`
			ReasonCode      []fhir.CodeableConcept `json:"reasonCode"`
			DispenseRequest struct {
				Performer fhir.Reference `json:"performer"`
			} `json:"dispenseRequest"`
		}
		if json.Unmarshal(resource, &mr) != nil {
			return mappings
		}
		if med := mr.MedicationCodeableConcept.Label(); med != "" {
			mappings["medication"] = med
			mappings["medication_name"] = med
		}
		if len(mr.DosageInstruction) > 0 {
			d := mr.DosageInstruction[0]
			if d.Text != "" {
				mappings["dosage"] = d.Text
				mappings["dose"] = d.Text
				mappings["instructions"] = d.Text
			}
			if route := d.Route.Label(); route != "" {
				mappings["route"] = route
			}
			if d.Timing.Repeat.Frequency > 0 {
				mappings["frequency"] = fmt.Sprintf("%d", d.Timing.Repeat.Frequency)
			}
		}
		if len(mr.ReasonCode) > 0 {
			if reason := mr.ReasonCode[0].Label(); reason != "" {
				mappings["indication"] = reason
				mappings["reason"] = reason
			}
		}
		if mr.DispenseRequest.Performer.Display != "" {
			mappings["pharmacy"] = mr.DispenseRequest.Performer.Display
		}
	}

	return mappings
}

// Keyword rules are evaluated in order; the first pattern found in the
// question text wins, and its keys are tried in order against the table.
type keywordRule struct {
	patterns []string
	keys     []string
}

var keywordRules = []keywordRule{
	{patterns: []string{"patient name", "name of patient", "full name"}, keys: []string{"patient_name"}},
	{patterns: []string{"date of birth", "dob", "birth date", "birthdate"}, keys: []string{"date_of_birth"}},
	{patterns: []string{"medical record", "mrn", "patient id", "record number"}, keys: []string{"mrn", "patient_id"}},
	// The indication rule sits above the exam rule: "reason for this study"
	// mentions the study but asks for the indication.
	{patterns: []string{"indication", "reason", "clinical reason", "why", "purpose"}, keys: []string{"indication", "reason", "clinical_indication"}},
	{patterns: []string{"test name", "exam type", "study", "procedure", "imaging", "scan type"}, keys: []string{"test_name", "study_name", "exam_type"}},
	{patterns: []string{"priority", "urgency"}, keys: []string{"priority"}},
	{patterns: []string{"body site", "region", "area", "location", "anatomical"}, keys: []string{"body_site", "region", "area"}},
	{patterns: []string{"medication", "drug", "prescription"}, keys: []string{"medication", "medication_name"}},
	{patterns: []string{"dosage", "dose", "amount"}, keys: []string{"dosage", "dose"}},
	{patterns: []string{"route", "method of administration"}, keys: []string{"route"}},
	{patterns: []string{"frequency", "how often"}, keys: []string{"frequency"}},
	{patterns: []string{"instructions", "directions"}, keys: []string{"instructions"}},
	{patterns: []string{"notes", "comments", "additional"}, keys: []string{"notes", "comments"}},
	{patterns: []string{"pharmacy"}, keys: []string{"pharmacy"}},
	{patterns: []string{"contrast", "dye"}, keys: []string{"contrast"}},
}

// MatchValue finds a value for one questionnaire item: exact linkId hit
// first, then question-text keywords, then (for choice items) a value from
// the table that equals one of the answer options. The boolean reports
// whether anything matched at all.
func MatchValue(item Item, mappings map[string]string) (string, bool) {
	if v, ok := mappings[item.LinkID]; ok && v != "" {
		return v, true
	}

	questionText := strings.ToLower(item.Text)
	for _, rule := range keywordRules {
		for _, pattern := range rule.patterns {
			if !strings.Contains(questionText, pattern) {
				continue
			}
			for _, key := range rule.keys {
				if v, ok := mappings[key]; ok && v != "" {
					return v, true
				}
			}
		}
	}

	if item.Type == "choice" && len(item.AnswerOption) > 0 {
		for _, v := range mappings {
			for _, opt := range item.AnswerOption {
				if strings.EqualFold(opt.Display(), v) || strings.EqualFold(opt.Code(), v) {
					return opt.Code(), true
				}
			}
		}
	}

	return "", false
}

// MatchAll runs the matcher over the top-level items of a questionnaire and
// returns linkId→value for everything that matched.
func MatchAll(q *Questionnaire, resource json.RawMessage, patientCtx map[string]string) map[string]string {
	matched := map[string]string{}
	if q == nil {
		return matched
	}
	mappings := ExtractMappings(resource, patientCtx)
	var walk func(items []Item)
	walk = func(items []Item) {
		for _, item := range items {
			if item.LinkID == "" {
				continue
			}
			if len(item.Item) > 0 {
				walk(item.Item)
			}
			if item.Type == "group" || item.Type == "display" {
				continue
			}
			if v, ok := MatchValue(item, mappings); ok {
				matched[item.LinkID] = v
			}
		}
	}
	walk(q.Item)
	return matched
}
