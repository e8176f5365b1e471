package session

import (
	"encoding/json"
	"testing"
	"time"
)

func decodePayload(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return m
}

func imagingResponse(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"resourceType": "QuestionnaireResponse",
		"status":       "in-progress",
		"item": []map[string]any{
			{"linkId": "orderGroup", "item": []map[string]any{
				{"linkId": "examType", "answer": []map[string]any{
					{"valueCoding": map[string]any{"code": "ct-head", "display": "CT Head"}},
				}},
				{"linkId": "priority", "answer": []map[string]any{{"valueString": "STAT"}}},
				{"linkId": "bodyRegion", "answer": []map[string]any{{"valueString": "Head"}}},
			}},
			{"linkId": "clinicalIndication", "answer": []map[string]any{{"valueString": "Persistent headaches"}}},
			{"linkId": "notes", "answer": []map[string]any{{"valueString": "Patient is claustrophobic"}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestBuildResource_ImagingBecomesServiceRequest(t *testing.T) {
	a := &Action{ID: "a1", Type: TypeImaging, Description: "CT scan of the head", Resource: imagingResponse(t)}

	resourceType, raw, err := buildResource(a, "pat-1")
	if err != nil {
		t.Fatalf("buildResource: %v", err)
	}
	if resourceType != "ServiceRequest" {
		t.Fatalf("resourceType = %q", resourceType)
	}

	sr := decodePayload(t, raw)
	if sr["status"] != "draft" || sr["intent"] != "order" {
		t.Errorf("status/intent = %v/%v", sr["status"], sr["intent"])
	}
	code := sr["code"].(map[string]any)
	// Display text, not the option code, goes into the order.
	if code["text"] != "CT Head" {
		t.Errorf("code.text = %v", code["text"])
	}
	if sr["priority"] != "stat" {
		t.Errorf("priority = %v, want lowercased", sr["priority"])
	}
	category := sr["category"].([]any)[0].(map[string]any)
	if category["text"] != "Radiology" {
		t.Errorf("category = %v", category["text"])
	}
	subject := sr["subject"].(map[string]any)
	if subject["reference"] != "Patient/pat-1" {
		t.Errorf("subject = %v", subject["reference"])
	}
	site := sr["bodySite"].([]any)[0].(map[string]any)
	if site["text"] != "Head" {
		t.Errorf("bodySite = %v", site["text"])
	}
	reason := sr["reasonCode"].([]any)[0].(map[string]any)
	if reason["text"] != "Persistent headaches" {
		t.Errorf("reasonCode = %v", reason["text"])
	}
	note := sr["note"].([]any)[0].(map[string]any)
	if note["text"] != "Patient is claustrophobic" {
		t.Errorf("note = %v", note["text"])
	}
}

func TestBuildResource_LabCategoryAndDefaults(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"resourceType": "QuestionnaireResponse",
		"item": []map[string]any{
			{"linkId": "testType", "answer": []map[string]any{{"valueString": "CBC with differential"}}},
		},
	})
	a := &Action{ID: "a1", Type: TypeLab, Description: "CBC", Resource: raw}

	_, payload, err := buildResource(a, "pat-1")
	if err != nil {
		t.Fatal(err)
	}
	sr := decodePayload(t, payload)
	if sr["priority"] != "routine" {
		t.Errorf("priority = %v, want default routine", sr["priority"])
	}
	category := sr["category"].([]any)[0].(map[string]any)
	if category["text"] != "Laboratory" {
		t.Errorf("category = %v", category["text"])
	}
	if sr["code"].(map[string]any)["text"] != "CBC with differential" {
		t.Errorf("code = %v", sr["code"])
	}
}

func TestBuildResource_MedicationRequest(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"resourceType": "QuestionnaireResponse",
		"item": []map[string]any{
			{"linkId": "medication", "answer": []map[string]any{{"valueString": "Lisinopril"}}},
			{"linkId": "dose", "answer": []map[string]any{{"valueString": "10mg"}}},
			{"linkId": "frequency", "answer": []map[string]any{{"valueString": "once daily"}}},
			{"linkId": "quantity", "answer": []map[string]any{{"valueString": "30"}}},
		},
	})
	a := &Action{ID: "a1", Type: TypeMedication, Description: "Start lisinopril", Resource: raw}

	resourceType, payload, err := buildResource(a, "pat-1")
	if err != nil {
		t.Fatal(err)
	}
	if resourceType != "MedicationRequest" {
		t.Fatalf("resourceType = %q", resourceType)
	}
	mr := decodePayload(t, payload)
	med := mr["medicationCodeableConcept"].(map[string]any)
	if med["text"] != "Lisinopril" {
		t.Errorf("medication = %v", med["text"])
	}
	dosage := mr["dosageInstruction"].([]any)[0].(map[string]any)
	// Route defaults to oral when the form didn't capture one.
	if dosage["text"] != "10mg oral once daily" {
		t.Errorf("dosage = %v", dosage["text"])
	}
	dispense := mr["dispenseRequest"].(map[string]any)["quantity"].(map[string]any)
	if dispense["value"] != float64(30) {
		t.Errorf("quantity = %v", dispense["value"])
	}
}

func TestBuildResource_Appointment(t *testing.T) {
	t.Run("prepends patient participant and derives end", func(t *testing.T) {
		raw, _ := json.Marshal(map[string]any{
			"resourceType": "Appointment",
			"status":       "booked",
			"start":        "2026-09-10T09:00:00Z",
			"participant": []map[string]any{
				{"actor": map[string]any{"display": "Dr. Lee"}, "status": "accepted"},
			},
		})
		a := &Action{ID: "a1", Type: TypeScheduling, Resource: raw}

		resourceType, payload, err := buildResource(a, "pat-1")
		if err != nil {
			t.Fatal(err)
		}
		if resourceType != "Appointment" {
			t.Fatalf("resourceType = %q", resourceType)
		}
		appt := decodePayload(t, payload)
		// Draft appointments always go in as proposed.
		if appt["status"] != "proposed" {
			t.Errorf("status = %v", appt["status"])
		}
		participants := appt["participant"].([]any)
		if len(participants) != 2 {
			t.Fatalf("participants = %v", participants)
		}
		first := participants[0].(map[string]any)
		if first["actor"].(map[string]any)["reference"] != "Patient/pat-1" || first["status"] != "needs-action" {
			t.Errorf("first participant = %v", first)
		}

		start, _ := time.Parse(time.RFC3339, appt["start"].(string))
		end, err := time.Parse(time.RFC3339, appt["end"].(string))
		if err != nil {
			t.Fatalf("end = %v: %v", appt["end"], err)
		}
		if end.Sub(start) != time.Hour {
			t.Errorf("end - start = %v, want 1h", end.Sub(start))
		}
	})

	t.Run("drops an end without a start", func(t *testing.T) {
		raw, _ := json.Marshal(map[string]any{
			"resourceType": "Appointment",
			"end":          "2026-09-10T10:00:00Z",
		})
		a := &Action{ID: "a1", Type: TypeScheduling, Resource: raw}

		_, payload, err := buildResource(a, "pat-1")
		if err != nil {
			t.Fatal(err)
		}
		appt := decodePayload(t, payload)
		if _, ok := appt["end"]; ok {
			t.Error("end should be removed when start is absent")
		}
	})
}

func TestBuildResource_QuestionnaireResponsePassthrough(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"resourceType":  "QuestionnaireResponse",
		"questionnaire": "Questionnaire/q-phq9",
		"item": []map[string]any{
			{"linkId": "q1", "answer": []map[string]any{{"valueInteger": 2}}},
		},
	})
	a := &Action{ID: "a1", Type: TypeQuestionnaire, Resource: raw}

	resourceType, payload, err := buildResource(a, "pat-1")
	if err != nil {
		t.Fatal(err)
	}
	if resourceType != "QuestionnaireResponse" {
		t.Fatalf("resourceType = %q", resourceType)
	}
	qr := decodePayload(t, payload)
	if qr["subject"].(map[string]any)["reference"] != "Patient/pat-1" {
		t.Errorf("subject = %v", qr["subject"])
	}
	if qr["source"].(map[string]any)["reference"] != "Patient/pat-1" {
		t.Errorf("source = %v", qr["source"])
	}
	if qr["status"] != "completed" {
		t.Errorf("status = %v, want completed default", qr["status"])
	}
}

func TestBuildResource_OrderPassthrough(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"resourceType": "ServiceRequest",
		"status":       "active",
		"code":         map[string]any{"text": "Lipid panel"},
	})
	a := &Action{ID: "a1", Type: TypeLab, Resource: raw}

	resourceType, payload, err := buildResource(a, "pat-1")
	if err != nil {
		t.Fatal(err)
	}
	if resourceType != "ServiceRequest" {
		t.Fatalf("resourceType = %q", resourceType)
	}
	sr := decodePayload(t, payload)
	if sr["status"] != "draft" || sr["intent"] != "order" {
		t.Errorf("status/intent = %v/%v, want normalized draft order", sr["status"], sr["intent"])
	}
	if sr["subject"].(map[string]any)["reference"] != "Patient/pat-1" {
		t.Errorf("subject = %v", sr["subject"])
	}
}

func TestBuildResource_NoResource(t *testing.T) {
	a := &Action{ID: "a1", Type: TypeLab}
	if _, _, err := buildResource(a, "pat-1"); err == nil {
		t.Fatal("expected error for action without resource")
	}
}
