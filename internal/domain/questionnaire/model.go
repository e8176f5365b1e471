// Package questionnaire implements the dynamic form pipeline: typed FHIR
// Questionnaire definitions, QuestionnaireResponse answers, autofill from
// extracted resources and patient context, gap filling with plausible
// defaults, completion counting, and the flat map representation the review
// surface edits.
package questionnaire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/fhir"
)

// AnswerOption is one selectable option of a choice item.
type AnswerOption struct {
	ValueCoding *fhir.Coding `json:"valueCoding,omitempty"`
	ValueString string       `json:"valueString,omitempty"`
}

// Code returns the stored value for the option: coding code first, then
// coding display, then the plain string.
func (o AnswerOption) Code() string {
	if o.ValueCoding != nil {
		if o.ValueCoding.Code != "" {
			return o.ValueCoding.Code
		}
		if o.ValueCoding.Display != "" {
			return o.ValueCoding.Display
		}
	}
	return o.ValueString
}

// Display returns the human-readable label for the option.
func (o AnswerOption) Display() string {
	if o.ValueCoding != nil && o.ValueCoding.Display != "" {
		return o.ValueCoding.Display
	}
	return o.ValueString
}

// Item is one node of a Questionnaire definition tree.
type Item struct {
	LinkID       string         `json:"linkId"`
	Text         string         `json:"text,omitempty"`
	Type         string         `json:"type"`
	Required     bool           `json:"required,omitempty"`
	AnswerOption []AnswerOption `json:"answerOption,omitempty"`
	Item         []Item         `json:"item,omitempty"`
}

// Questionnaire is a form definition as stored in the EMR.
type Questionnaire struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Name         string        `json:"name,omitempty"`
	Title        string        `json:"title,omitempty"`
	Description  string        `json:"description,omitempty"`
	Status       string        `json:"status,omitempty"`
	Code         []fhir.Coding `json:"code,omitempty"`
	Item         []Item        `json:"item,omitempty"`
}

// DisplayName prefers name over title, falling back to a placeholder.
func (q *Questionnaire) DisplayName() string {
	if q.Name != "" {
		return q.Name
	}
	if q.Title != "" {
		return q.Title
	}
	return "Unnamed Questionnaire"
}

// Answer is a QuestionnaireResponse answer. Exactly one value field is set;
// pointer fields distinguish "absent" from zero values like false and 0.
type Answer struct {
	ValueString   *string      `json:"valueString,omitempty"`
	ValueBoolean  *bool        `json:"valueBoolean,omitempty"`
	ValueInteger  *int         `json:"valueInteger,omitempty"`
	ValueDecimal  *float64     `json:"valueDecimal,omitempty"`
	ValueDate     *string      `json:"valueDate,omitempty"`
	ValueDateTime *string      `json:"valueDateTime,omitempty"`
	ValueTime     *string      `json:"valueTime,omitempty"`
	ValueCoding   *fhir.Coding `json:"valueCoding,omitempty"`
}

func StringAnswer(s string) Answer    { return Answer{ValueString: &s} }
func BoolAnswer(b bool) Answer        { return Answer{ValueBoolean: &b} }
func IntAnswer(i int) Answer          { return Answer{ValueInteger: &i} }
func DecimalAnswer(f float64) Answer  { return Answer{ValueDecimal: &f} }
func DateAnswer(s string) Answer      { return Answer{ValueDate: &s} }
func DateTimeAnswer(s string) Answer  { return Answer{ValueDateTime: &s} }
func TimeAnswer(s string) Answer      { return Answer{ValueTime: &s} }
func CodingAnswer(c fhir.Coding) Answer {
	return Answer{ValueCoding: &c}
}

// Value returns the answer for editing and conversion. Coded answers yield
// the code (the display is presentation only), falling back to display when
// the code is empty.
func (a Answer) Value() any {
	switch {
	case a.ValueString != nil:
		return *a.ValueString
	case a.ValueBoolean != nil:
		return *a.ValueBoolean
	case a.ValueInteger != nil:
		return *a.ValueInteger
	case a.ValueDecimal != nil:
		return *a.ValueDecimal
	case a.ValueDate != nil:
		return *a.ValueDate
	case a.ValueDateTime != nil:
		return *a.ValueDateTime
	case a.ValueTime != nil:
		return *a.ValueTime
	case a.ValueCoding != nil:
		if a.ValueCoding.Code != "" {
			return a.ValueCoding.Code
		}
		return a.ValueCoding.Display
	}
	return nil
}

// Text renders the answer as a display string.
func (a Answer) Text() string {
	v := a.Value()
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// ResponseItem is one node of a QuestionnaireResponse tree.
type ResponseItem struct {
	LinkID string         `json:"linkId"`
	Text   string         `json:"text,omitempty"`
	Answer []Answer       `json:"answer,omitempty"`
	Item   []ResponseItem `json:"item,omitempty"`
}

// Response is a FHIR QuestionnaireResponse.
type Response struct {
	ResourceType  string          `json:"resourceType"`
	ID            string          `json:"id,omitempty"`
	Questionnaire string          `json:"questionnaire,omitempty"`
	Status        string          `json:"status,omitempty"`
	Subject       *fhir.Reference `json:"subject,omitempty"`
	Source        *fhir.Reference `json:"source,omitempty"`
	Item          []ResponseItem  `json:"item,omitempty"`
}

// Summary is the condensed questionnaire listing handed to the extraction
// model and the UI.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code,omitempty"`
	Type        string `json:"type"`
}

// Categorize buckets a questionnaire by keywords in its name, title and
// description.
func Categorize(q *Questionnaire) string {
	text := strings.ToLower(q.Name + " " + q.Title + " " + q.Description)

	switch {
	case containsAny(text, "medication", "prescription", "rx"):
		return "medication"
	case containsAny(text, "lab", "blood", "test"):
		return "lab"
	case containsAny(text, "imaging", "xray", "x-ray", "mri", "ct", "scan"):
		return "imaging"
	case containsAny(text, "referral", "consult"):
		return "referral"
	case containsAny(text, "followup", "follow-up", "follow up"):
		return "followup"
	case containsAny(text, "phq", "health questionnaire"):
		return "assessment"
	}
	return "other"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ParseQuestionnaire decodes a raw FHIR Questionnaire.
func ParseQuestionnaire(raw json.RawMessage) (*Questionnaire, error) {
	var q Questionnaire
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("decode questionnaire: %w", err)
	}
	return &q, nil
}

// ParseResponse decodes a raw FHIR QuestionnaireResponse.
func ParseResponse(raw json.RawMessage) (*Response, error) {
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode questionnaire response: %w", err)
	}
	return &r, nil
}
