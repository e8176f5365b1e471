package questionnaire

import (
	"encoding/json"
	"testing"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/fhir"
)

const sampleServiceRequest = `{
  "resourceType": "ServiceRequest",
  "status": "draft",
  "intent": "order",
  "code": {"text": "CT Head without contrast"},
  "priority": "urgent",
  "bodySite": [{"text": "Head"}],
  "reasonCode": [{"text": "Severe headache"}],
  "category": [{"text": "Radiology"}],
  "note": [{"text": "Patient is claustrophobic"}]
}`

const sampleMedicationRequest = `{
  "resourceType": "MedicationRequest",
  "status": "draft",
  "intent": "order",
  "medicationCodeableConcept": {"text": "Lisinopril 10mg"},
  "dosageInstruction": [{
    "text": "10mg once daily",
    "route": {"text": "Oral"},
    "timing": {"repeat": {"frequency": 1}}
  }],
  "reasonCode": [{"text": "Hypertension"}],
  "dispenseRequest": {"performer": {"display": "Walgreens on 5th"}}
}`

func TestExtractMappings_ServiceRequest(t *testing.T) {
	m := ExtractMappings(json.RawMessage(sampleServiceRequest), map[string]string{"patient_name": "Maria Santos"})

	want := map[string]string{
		"patient_name": "Maria Santos",
		"test_name":    "CT Head without contrast",
		"exam_type":    "CT Head without contrast",
		"priority":     "urgent",
		"body_site":    "Head",
		"indication":   "Severe headache",
		"reason":       "Severe headache",
		"category":     "Radiology",
		"notes":        "Patient is claustrophobic",
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("mappings[%q] = %q, want %q", k, m[k], v)
		}
	}
}

func TestExtractMappings_MedicationRequest(t *testing.T) {
	m := ExtractMappings(json.RawMessage(sampleMedicationRequest), nil)

	if m["medication"] != "Lisinopril 10mg" {
		t.Errorf("medication = %q", m["medication"])
	}
	if m["dosage"] != "10mg once daily" {
		t.Errorf("dosage = %q", m["dosage"])
	}
	if m["route"] != "Oral" {
		t.Errorf("route = %q", m["route"])
	}
	if m["frequency"] != "1" {
		t.Errorf("frequency = %q", m["frequency"])
	}
	if m["pharmacy"] != "Walgreens on 5th" {
		t.Errorf("pharmacy = %q", m["pharmacy"])
	}
}

func TestExtractMappings_UnknownResource(t *testing.T) {
	m := ExtractMappings(json.RawMessage(`{"resourceType":"Observation"}`), map[string]string{"mrn": "MRN-1"})
	if len(m) != 1 || m["mrn"] != "MRN-1" {
		t.Errorf("mappings = %v, want demographics only", m)
	}
}

func TestMatchValue_ExactLinkID(t *testing.T) {
	m := map[string]string{"priority": "urgent"}
	got, ok := MatchValue(Item{LinkID: "priority", Text: "Order priority", Type: "string"}, m)
	if !ok || got != "urgent" {
		t.Errorf("got %q/%v", got, ok)
	}
}

func TestMatchValue_KeywordFallback(t *testing.T) {
	m := ExtractMappings(json.RawMessage(sampleServiceRequest), nil)
	got, ok := MatchValue(Item{LinkID: "q7", Text: "What is the clinical reason for this study?", Type: "text"}, m)
	if !ok || got != "Severe headache" {
		t.Errorf("got %q/%v, want reason text", got, ok)
	}
}

func TestMatchValue_ChoiceOptionMatch(t *testing.T) {
	item := Item{
		LinkID: "urgencyChoice",
		Text:   "How soon?",
		Type:   "choice",
		AnswerOption: []AnswerOption{
			{ValueCoding: &fhir.Coding{Code: "routine", Display: "Routine"}},
			{ValueCoding: &fhir.Coding{Code: "urgent", Display: "Urgent"}},
		},
	}
	got, ok := MatchValue(item, map[string]string{"priority": "Urgent"})
	if !ok || got != "urgent" {
		t.Errorf("got %q/%v, want stored code", got, ok)
	}
}

func TestMatchValue_NoMatchIsAbsence(t *testing.T) {
	if _, ok := MatchValue(Item{LinkID: "favColor", Text: "Favorite color", Type: "string"}, map[string]string{"priority": "stat"}); ok {
		t.Error("expected no match, not an error value")
	}
}

func TestMatchAll_WalksGroups(t *testing.T) {
	q := &Questionnaire{Item: []Item{
		{LinkID: "orderSection", Type: "group", Item: []Item{
			{LinkID: "test_name", Text: "Test name", Type: "string"},
			{LinkID: "priority", Text: "Priority", Type: "string"},
		}},
		{LinkID: "unrelated", Text: "Anything else?", Type: "text"},
	}}
	got := MatchAll(q, json.RawMessage(sampleServiceRequest), nil)
	if got["test_name"] != "CT Head without contrast" {
		t.Errorf("test_name = %q", got["test_name"])
	}
	if got["priority"] != "urgent" {
		t.Errorf("priority = %q", got["priority"])
	}
	if _, ok := got["unrelated"]; ok {
		t.Error("unrelated question should stay unmatched")
	}
	if _, ok := got["orderSection"]; ok {
		t.Error("groups must not receive values")
	}
}
