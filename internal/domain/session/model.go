// Package session holds the draft clinical actions produced for one consult
// and drives them through review: analyze a transcript into pending actions,
// let the clinician edit and approve or reject each one, then apply approved
// actions to the EMR and send the aftercare email.
package session

import (
	"encoding/json"
	"time"

	"github.com/shreyaskommuri/ClinicAct/internal/domain/patient"
	"github.com/shreyaskommuri/ClinicAct/internal/domain/questionnaire"
	"github.com/shreyaskommuri/ClinicAct/internal/platform/fhir"
)

// Action types.
const (
	TypeMedication    = "medication"
	TypeLab           = "lab"
	TypeImaging       = "imaging"
	TypeReferral      = "referral"
	TypeFollowup      = "followup"
	TypeScheduling    = "scheduling"
	TypeQuestionnaire = "questionnaire_response"
)

var validTypes = map[string]bool{
	TypeMedication:    true,
	TypeLab:           true,
	TypeImaging:       true,
	TypeReferral:      true,
	TypeFollowup:      true,
	TypeScheduling:    true,
	TypeQuestionnaire: true,
}

// Review states. Transitions run pending→approved or pending→rejected;
// moving back to pending is only possible through Reopen, which is disabled
// unless the deployment opts in.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Action is one draft clinical action awaiting review.
type Action struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Rationale     string `json:"rationale,omitempty"`
	DoseInfo      string `json:"doseInfo,omitempty"`
	Pharmacy      string `json:"pharmacy,omitempty"`
	SafetyFlag    string `json:"safetyFlag,omitempty"`
	SafetyMessage string `json:"safetyMessage,omitempty"`

	QuestionnaireID   string `json:"questionnaireId,omitempty"`
	QuestionnaireName string `json:"questionnaireName,omitempty"`

	// Scheduling email fields. Frozen at approval time so later session
	// edits cannot change what the clinician signed off on.
	Email   string `json:"email,omitempty"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
	Reason  string `json:"reason,omitempty"`
	When    string `json:"when,omitempty"`

	// Draft FHIR payload. Kept raw; typed views are decoded on demand.
	Resource json.RawMessage `json:"resource,omitempty"`

	Applied             bool   `json:"applied"`
	AppliedResourceID   string `json:"appliedResourceId,omitempty"`
	AppliedResourceType string `json:"appliedResourceType,omitempty"`

	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
}

// ResourceType sniffs the resourceType of the draft payload.
func (a *Action) ResourceType() string {
	if len(a.Resource) == 0 {
		return ""
	}
	var r fhir.Resource
	if json.Unmarshal(a.Resource, &r) != nil {
		return ""
	}
	return r.ResourceType
}

// QuestionnaireResponse decodes the payload when it is one; nil otherwise.
func (a *Action) QuestionnaireResponse() *questionnaire.Response {
	if a.ResourceType() != "QuestionnaireResponse" {
		return nil
	}
	resp, err := questionnaire.ParseResponse(a.Resource)
	if err != nil {
		return nil
	}
	return resp
}

// Completion returns the whole-percent completeness of the action.
// Scheduling actions are always complete; form-backed actions count filled
// leaves; everything else falls back to the six descriptive attributes.
func (a *Action) Completion() int {
	if a.Type == TypeScheduling {
		return 100
	}
	if resp := a.QuestionnaireResponse(); resp != nil && len(resp.Item) > 0 {
		return questionnaire.Completion(resp.Item)
	}

	fields := []string{a.Title, a.Description, a.Rationale, a.DoseInfo, a.Pharmacy, a.SafetyFlag}
	filled := 0
	for _, f := range fields {
		if f != "" {
			filled++
		}
	}
	return int(float64(filled)/float64(len(fields))*100 + 0.5)
}

// AftercareDraft is the LLM-drafted after-visit summary email.
type AftercareDraft struct {
	Subject     string     `json:"subject"`
	Body        string     `json:"body"`
	GeneratedAt time.Time  `json:"generatedAt"`
	SentTo      string     `json:"sentTo,omitempty"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
}

// Session is one consult's worth of state: the patient snapshot, the
// transcript, the draft actions, and the aftercare email.
type Session struct {
	ID             string           `json:"id"`
	Patient        *patient.Profile `json:"patient,omitempty"`
	Transcript     string           `json:"transcript,omitempty"`
	HistorySummary string           `json:"historySummary,omitempty"`
	Actions        []Action         `json:"actions"`
	Aftercare      *AftercareDraft  `json:"aftercare,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// FindAction returns a pointer into the session's action slice, or nil.
func (s *Session) FindAction(actionID string) *Action {
	for i := range s.Actions {
		if s.Actions[i].ID == actionID {
			return &s.Actions[i]
		}
	}
	return nil
}

// ApprovedActions returns the approved actions in session order.
func (s *Session) ApprovedActions() []Action {
	var out []Action
	for _, a := range s.Actions {
		if a.Status == StatusApproved {
			out = append(out, a)
		}
	}
	return out
}
