package questionnaire

import "testing"

func TestFillMissing_AddsOnlyUnanswered(t *testing.T) {
	q := demoQuestionnaire()
	resp := &Response{
		ResourceType: "QuestionnaireResponse",
		Item: []ResponseItem{
			{LinkID: "orderGroup", Item: []ResponseItem{
				{LinkID: "priority", Answer: []Answer{StringAnswer("stat")}},
			}},
		},
	}

	filled := FillMissing(resp, q, FillContext{})

	flat := Flatten(filled.Item)
	if flat["priority"] != "stat" {
		t.Errorf("existing answer overwritten: %v", flat["priority"])
	}
	if flat["examType"] != "ct-head" {
		t.Errorf("examType = %v, want first option code", flat["examType"])
	}
	if v, ok := flat["contrast_needed"]; !ok || v != false {
		t.Errorf("contrast_needed = %v/%v, want filled false", v, ok)
	}
	if _, ok := flat["intro_display"]; ok {
		t.Error("display item must not be filled")
	}

	// Filled items land inside their group, not at top level.
	var group *ResponseItem
	for i := range filled.Item {
		if filled.Item[i].LinkID == "orderGroup" {
			group = &filled.Item[i]
		}
	}
	if group == nil {
		t.Fatal("group missing from filled response")
	}
	found := false
	for _, it := range group.Item {
		if it.LinkID == "examType" {
			found = true
		}
	}
	if !found {
		t.Error("examType should be nested inside orderGroup")
	}
}

func TestFillMissing_DoesNotMutateInput(t *testing.T) {
	q := demoQuestionnaire()
	resp := &Response{ResourceType: "QuestionnaireResponse"}

	_ = FillMissing(resp, q, FillContext{})
	if len(resp.Item) != 0 {
		t.Error("input response was mutated")
	}
}

func TestFillMissing_EveryLeafEndsUpAnswered(t *testing.T) {
	q := demoQuestionnaire()
	filled := FillMissing(&Response{ResourceType: "QuestionnaireResponse"}, q, FillContext{
		PatientName: "Maria Santos",
	})

	total, _ := CountFields(filled.Item)
	// examType, priority, contrast_needed, notes
	if total != 4 {
		t.Errorf("countable fields = %d, want 4", total)
	}
	var checkAnswered func(items []ResponseItem)
	checkAnswered = func(items []ResponseItem) {
		for _, it := range items {
			if len(it.Item) > 0 {
				checkAnswered(it.Item)
				continue
			}
			if len(it.Answer) == 0 {
				t.Errorf("leaf %q has no answer", it.LinkID)
			}
		}
	}
	checkAnswered(filled.Item)
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Medication Order Form", "medication"},
		{"Outpatient Lab Requisition", "lab"},
		{"MRI Safety Screening", "imaging"},
		{"Specialist Referral Request", "referral"},
		{"Follow-up Visit Intake", "followup"},
		{"PHQ-9", "assessment"},
		{"General Intake", "other"},
	}
	for _, tc := range cases {
		got := Categorize(&Questionnaire{Name: tc.name})
		if got != tc.want {
			t.Errorf("Categorize(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}
