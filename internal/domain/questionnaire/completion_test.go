package questionnaire

import (
	"testing"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/fhir"
)

func TestCompletion_CountsLeavesThroughGroups(t *testing.T) {
	items := []ResponseItem{
		{LinkID: "orderGroup", Item: []ResponseItem{
			{LinkID: "test_name", Answer: []Answer{StringAnswer("CBC")}},
			{LinkID: "priority", Answer: []Answer{StringAnswer("")}},
		}},
		{LinkID: "notes"},
	}
	total, filled := CountFields(items)
	if total != 3 || filled != 1 {
		t.Errorf("total/filled = %d/%d, want 3/1", total, filled)
	}
	if got := Completion(items); got != 33 {
		t.Errorf("completion = %d, want 33", got)
	}
}

func TestCompletion_SkipsDisplayAndSectionLeaves(t *testing.T) {
	items := []ResponseItem{
		{LinkID: "intro_display"},
		{LinkID: "section_header"},
		{LinkID: "q1", Answer: []Answer{StringAnswer("yes")}},
	}
	total, filled := CountFields(items)
	if total != 1 || filled != 1 {
		t.Errorf("total/filled = %d/%d, want 1/1", total, filled)
	}
}

func TestCompletion_SentinelsAreNotAnswers(t *testing.T) {
	for _, s := range []string{"N/A", "Unknown", "Select an option...", "Select an option", "", "   "} {
		if (Answer{ValueString: &s}).Filled() {
			t.Errorf("%q should not count as filled", s)
		}
	}

	real := "CT Head"
	if !(Answer{ValueString: &real}).Filled() {
		t.Error("real answer should count")
	}
}

func TestCompletion_FalseAndZeroAreAnswers(t *testing.T) {
	if !BoolAnswer(false).Filled() {
		t.Error("false is a legitimate answer")
	}
	if !IntAnswer(0).Filled() {
		t.Error("zero is a legitimate answer")
	}
	if !DecimalAnswer(0).Filled() {
		t.Error("zero decimal is a legitimate answer")
	}
}

func TestCompletion_CodedAnswers(t *testing.T) {
	good := CodingAnswer(fhir.Coding{Code: "ct-head", Display: "CT Head"})
	if !good.Filled() {
		t.Error("coded answer with code should count")
	}
	noCode := CodingAnswer(fhir.Coding{Display: "CT Head"})
	if noCode.Filled() {
		t.Error("coded answer without code should not count")
	}
	placeholder := CodingAnswer(fhir.Coding{Code: "x", Display: "Select an option..."})
	if placeholder.Filled() {
		t.Error("placeholder display should not count")
	}
}

func TestCompletion_EmptyTreeIsZero(t *testing.T) {
	if got := Completion(nil); got != 0 {
		t.Errorf("completion of empty tree = %d, want 0", got)
	}
	if got := Completion([]ResponseItem{{LinkID: "only_display"}}); got != 0 {
		t.Errorf("completion with no countable fields = %d, want 0", got)
	}
}

func TestCompletion_Rounds(t *testing.T) {
	items := []ResponseItem{
		{LinkID: "a", Answer: []Answer{StringAnswer("x")}},
		{LinkID: "b", Answer: []Answer{StringAnswer("y")}},
		{LinkID: "c"},
	}
	if got := Completion(items); got != 67 {
		t.Errorf("completion = %d, want 67", got)
	}
}
