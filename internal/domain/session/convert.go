package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shreyaskommuri/ClinicAct/internal/domain/questionnaire"
	"github.com/shreyaskommuri/ClinicAct/internal/platform/fhir"
)

// extractText pulls the display text of the first answer for a linkId,
// searching the whole response tree. Coded answers yield their display; the
// code is an implementation detail of the form.
func extractText(items []questionnaire.ResponseItem, linkID string) string {
	for _, item := range items {
		if item.LinkID == linkID && len(item.Answer) > 0 {
			a := item.Answer[0]
			if a.ValueCoding != nil && a.ValueCoding.Display != "" {
				return a.ValueCoding.Display
			}
			return a.Text()
		}
		if len(item.Item) > 0 {
			if v := extractText(item.Item, linkID); v != "" {
				return v
			}
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// buildResource prepares the final FHIR payload for one approved action:
// QuestionnaireResponse drafts become proper order resources where the
// action type calls for one, the patient reference is attached, and statuses
// are normalized the way the store expects them.
func buildResource(a *Action, patientID string) (string, json.RawMessage, error) {
	resourceType := a.ResourceType()
	if resourceType == "" {
		return "", nil, fmt.Errorf("action %s has no resource", a.ID)
	}

	if resourceType == "QuestionnaireResponse" {
		switch a.Type {
		case TypeImaging, TypeLab, TypeReferral:
			return buildServiceRequest(a, patientID)
		case TypeMedication:
			return buildMedicationRequest(a, patientID)
		}
	}

	switch resourceType {
	case "Appointment":
		return buildAppointment(a, patientID)
	case "QuestionnaireResponse":
		return buildQuestionnaireResponse(a, patientID)
	case "ServiceRequest", "MedicationRequest":
		return buildOrderPassthrough(a, resourceType, patientID)
	}
	return "", nil, fmt.Errorf("unsupported resource type %q", resourceType)
}

func buildServiceRequest(a *Action, patientID string) (string, json.RawMessage, error) {
	resp := a.QuestionnaireResponse()
	if resp == nil {
		return "", nil, fmt.Errorf("action %s: malformed questionnaire response", a.ID)
	}
	items := resp.Item

	category := map[string]string{
		TypeImaging:  "Radiology",
		TypeLab:      "Laboratory",
		TypeReferral: "Referral",
	}[a.Type]

	sr := map[string]any{
		"resourceType": "ServiceRequest",
		"status":       "draft",
		"intent":       "order",
		"category":     []map[string]any{{"text": category}},
		"code": map[string]any{
			"text": firstNonEmpty(
				extractText(items, "examType"),
				extractText(items, "testType"),
				extractText(items, "scanType"),
				a.Description,
			),
		},
		"priority": strings.ToLower(firstNonEmpty(extractText(items, "priority"), "routine")),
		"subject":  map[string]any{"reference": fhir.FormatReference("Patient", patientID)},
	}
	if site := extractText(items, "bodyRegion"); site != "" {
		sr["bodySite"] = []map[string]any{{"text": site}}
	}
	if reason := extractText(items, "clinicalIndication"); reason != "" {
		sr["reasonCode"] = []map[string]any{{"text": reason}}
	}
	if note := firstNonEmpty(extractText(items, "notes"), extractText(items, "additionalInfo")); note != "" {
		sr["note"] = []map[string]any{{"text": note}}
	}

	raw, err := json.Marshal(sr)
	return "ServiceRequest", raw, err
}

func buildMedicationRequest(a *Action, patientID string) (string, json.RawMessage, error) {
	resp := a.QuestionnaireResponse()
	if resp == nil {
		return "", nil, fmt.Errorf("action %s: malformed questionnaire response", a.ID)
	}
	items := resp.Item

	dosage := strings.TrimSpace(strings.Join([]string{
		extractText(items, "dose"),
		firstNonEmpty(extractText(items, "route"), "oral"),
		extractText(items, "frequency"),
	}, " "))

	mr := map[string]any{
		"resourceType": "MedicationRequest",
		"status":       "draft",
		"intent":       "order",
		"medicationCodeableConcept": map[string]any{
			"text": firstNonEmpty(extractText(items, "medication"), a.Description),
		},
		"subject":           map[string]any{"reference": fhir.FormatReference("Patient", patientID)},
		"dosageInstruction": []map[string]any{{"text": dosage}},
	}
	if q := extractText(items, "quantity"); q != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(q)); err == nil && n > 0 {
			mr["dispenseRequest"] = map[string]any{"quantity": map[string]any{"value": n}}
		}
	}

	raw, err := json.Marshal(mr)
	return "MedicationRequest", raw, err
}

func buildAppointment(a *Action, patientID string) (string, json.RawMessage, error) {
	var appt map[string]any
	if err := json.Unmarshal(a.Resource, &appt); err != nil {
		return "", nil, fmt.Errorf("action %s: decode appointment: %w", a.ID, err)
	}

	patientParticipant := map[string]any{
		"actor":  map[string]any{"reference": fhir.FormatReference("Patient", patientID)},
		"status": "needs-action",
	}
	existing, _ := appt["participant"].([]any)
	appt["participant"] = append([]any{patientParticipant}, existing...)
	appt["status"] = "proposed"

	// The store requires start and end together or neither.
	start, hasStart := appt["start"].(string)
	_, hasEnd := appt["end"].(string)
	switch {
	case hasStart && !hasEnd:
		if t, err := time.Parse(time.RFC3339, start); err == nil {
			appt["end"] = t.Add(time.Hour).Format(time.RFC3339)
		} else {
			delete(appt, "start")
		}
	case !hasStart && hasEnd:
		delete(appt, "end")
	}

	raw, err := json.Marshal(appt)
	return "Appointment", raw, err
}

func buildQuestionnaireResponse(a *Action, patientID string) (string, json.RawMessage, error) {
	var qr map[string]any
	if err := json.Unmarshal(a.Resource, &qr); err != nil {
		return "", nil, fmt.Errorf("action %s: decode questionnaire response: %w", a.ID, err)
	}
	ref := map[string]any{"reference": fhir.FormatReference("Patient", patientID)}
	qr["subject"] = ref
	qr["source"] = ref
	if qr["status"] == nil || qr["status"] == "" {
		qr["status"] = "completed"
	}
	raw, err := json.Marshal(qr)
	return "QuestionnaireResponse", raw, err
}

func buildOrderPassthrough(a *Action, resourceType, patientID string) (string, json.RawMessage, error) {
	var res map[string]any
	if err := json.Unmarshal(a.Resource, &res); err != nil {
		return "", nil, fmt.Errorf("action %s: decode %s: %w", a.ID, resourceType, err)
	}
	res["subject"] = map[string]any{"reference": fhir.FormatReference("Patient", patientID)}
	res["status"] = "draft"
	res["intent"] = "order"
	raw, err := json.Marshal(res)
	return resourceType, raw, err
}
