package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shreyaskommuri/ClinicAct/internal/domain/patient"
	"github.com/shreyaskommuri/ClinicAct/internal/domain/questionnaire"
	"github.com/shreyaskommuri/ClinicAct/internal/platform/llm"
)

var (
	// ErrIncomplete blocks approval of a form-backed action with unanswered
	// fields.
	ErrIncomplete = errors.New("action form is not complete")
	// ErrInvalidStatus is returned for review transitions the action's
	// current status does not allow.
	ErrInvalidStatus = errors.New("action is not in a state that allows this transition")
	// ErrReopenDisabled is returned when reopening reviewed actions is not
	// enabled for this deployment.
	ErrReopenDisabled = errors.New("reopening reviewed actions is disabled")
	// ErrActionNotFound is returned for unknown action ids.
	ErrActionNotFound = errors.New("action not found")
)

// PatientReader resolves patients into normalized profiles.
type PatientReader interface {
	Get(ctx context.Context, id string) (*patient.Profile, error)
}

// FormCatalog lists and reads form definitions.
type FormCatalog interface {
	List(ctx context.Context) ([]questionnaire.Summary, error)
	Get(ctx context.Context, id string) (*questionnaire.Questionnaire, error)
}

// Extractor generates text completions for extraction and drafting.
type Extractor interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ResourceWriter creates FHIR resources in the EMR store.
type ResourceWriter interface {
	CreateResource(ctx context.Context, resourceType string, resource json.RawMessage) (json.RawMessage, error)
}

// EmailSender delivers outbound mail.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Service struct {
	store       Store
	patients    PatientReader
	forms       FormCatalog
	extractor   Extractor
	writer      ResourceWriter
	email       EmailSender
	allowReopen bool
	guard       *flightGuard
	logger      zerolog.Logger
}

func NewService(store Store, patients PatientReader, forms FormCatalog, extractor Extractor, writer ResourceWriter, email EmailSender, allowReopen bool, logger zerolog.Logger) *Service {
	return &Service{
		store:       store,
		patients:    patients,
		forms:       forms,
		extractor:   extractor,
		writer:      writer,
		email:       email,
		allowReopen: allowReopen,
		guard:       newFlightGuard(),
		logger:      logger,
	}
}

// Start creates a session around a patient. Insurance and pharmacy come from
// the consult context; the EMR's Patient resource doesn't carry them.
func (s *Service) Start(ctx context.Context, patientID, insurance, preferredPharmacy string) (*Session, error) {
	profile, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("resolve patient: %w", err)
	}
	profile.Insurance = insurance
	profile.PreferredPharmacy = preferredPharmacy

	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		Patient:   profile,
		Actions:   []Action{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// extractedAction is the wire shape one action takes in the model output.
type extractedAction struct {
	Type              string          `json:"type"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Rationale         string          `json:"rationale"`
	DoseInfo          string          `json:"doseInfo"`
	Pharmacy          string          `json:"pharmacy"`
	SafetyFlag        string          `json:"safetyFlag"`
	SafetyMessage     string          `json:"safetyMessage"`
	QuestionnaireID   string          `json:"questionnaireId"`
	QuestionnaireName string          `json:"questionnaireName"`
	Resource          json.RawMessage `json:"resource"`
	Reason            string          `json:"reason"`
	When              string          `json:"when"`
	Subject           string          `json:"subject"`
	Body              string          `json:"body"`
	Email             string          `json:"email"`
}

type formDefinition struct {
	summary    questionnaire.Summary
	definition *questionnaire.Questionnaire
}

// Analyze extracts draft actions from a transcript. Previously extracted
// pending actions are replaced; reviewed actions are kept. A concurrent
// analyze for the same session is rejected with ErrBusy.
func (s *Service) Analyze(ctx context.Context, sessionID, transcript string) (*Session, error) {
	release, err := s.guard.begin(sessionID, "analyze")
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	forms := s.loadForms(ctx)

	prompt := analyzeSystemPrompt + "\n\n" + buildAnalyzePrompt(transcript, sess.Patient, forms)
	completion, err := s.extractor.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}

	raw, err := llm.ExtractJSON(completion)
	if err != nil {
		return nil, fmt.Errorf("extraction returned malformed output: %w", err)
	}
	var parsed struct {
		Actions []extractedAction `json:"actions"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("extraction returned malformed output: %w", err)
	}

	actions := s.validateActions(ctx, parsed.Actions, sess.Patient)

	// Keep reviewed actions, replace the pending set.
	var kept []Action
	for _, a := range sess.Actions {
		if a.Status != StatusPending {
			kept = append(kept, a)
		}
	}
	sess.Actions = append(kept, actions...)
	sess.Transcript = transcript
	sess.UpdatedAt = time.Now()

	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// loadForms fetches the active form definitions for prompt building.
// Failure degrades to extraction without questionnaire context rather than
// failing the analyze.
func (s *Service) loadForms(ctx context.Context) []formDefinition {
	summaries, err := s.forms.List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("questionnaire listing failed, extracting without form context")
		return nil
	}
	var out []formDefinition
	for _, summary := range summaries {
		def, err := s.forms.Get(ctx, summary.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("questionnaire_id", summary.ID).Msg("skipping questionnaire")
			continue
		}
		out = append(out, formDefinition{summary: summary, definition: def})
	}
	return out
}

// validateActions applies the per-action rules: unknown type, missing
// description, or missing resource drops the action silently; scheduling
// actions need email content and get a default Appointment; form-backed
// actions get their unanswered fields filled.
func (s *Service) validateActions(ctx context.Context, extracted []extractedAction, profile *patient.Profile) []Action {
	var out []Action
	for _, ea := range extracted {
		if ea.Type == "" || ea.Description == "" {
			s.logger.Debug().Str("type", ea.Type).Msg("dropping action without type or description")
			continue
		}
		if !validTypes[ea.Type] {
			s.logger.Debug().Str("type", ea.Type).Msg("dropping action with unknown type")
			continue
		}
		if ea.Type == TypeScheduling {
			if ea.Subject == "" && ea.Body == "" {
				s.logger.Debug().Msg("dropping scheduling action without email content")
				continue
			}
			if len(ea.Resource) == 0 {
				defaultAppt, _ := json.Marshal(map[string]any{
					"resourceType": "Appointment",
					"status":       "proposed",
					"description":  ea.Description,
				})
				ea.Resource = defaultAppt
			}
		} else if len(ea.Resource) == 0 {
			s.logger.Debug().Str("type", ea.Type).Msg("dropping action without resource")
			continue
		}

		title := ea.Title
		if title == "" {
			title = ea.Description
		}
		action := Action{
			ID:                uuid.NewString(),
			Type:              ea.Type,
			Status:            StatusPending,
			Title:             title,
			Description:       ea.Description,
			Rationale:         ea.Rationale,
			DoseInfo:          ea.DoseInfo,
			Pharmacy:          ea.Pharmacy,
			SafetyFlag:        ea.SafetyFlag,
			SafetyMessage:     ea.SafetyMessage,
			QuestionnaireID:   ea.QuestionnaireID,
			QuestionnaireName: ea.QuestionnaireName,
			Email:             ea.Email,
			Subject:           ea.Subject,
			Body:              ea.Body,
			Reason:            ea.Reason,
			When:              ea.When,
			Resource:          ea.Resource,
		}

		if action.ResourceType() == "QuestionnaireResponse" && action.QuestionnaireID != "" {
			if filled, ok := s.fillResponseGaps(ctx, &action, profile); ok {
				action.Resource = filled
			}
		}

		out = append(out, action)
	}
	return out
}

// fillResponseGaps runs the matcher-then-filler pipeline over a drafted
// QuestionnaireResponse. Failure keeps the original draft.
func (s *Service) fillResponseGaps(ctx context.Context, a *Action, profile *patient.Profile) (json.RawMessage, bool) {
	def, err := s.forms.Get(ctx, a.QuestionnaireID)
	if err != nil {
		s.logger.Warn().Err(err).Str("questionnaire_id", a.QuestionnaireID).Msg("gap fill skipped")
		return nil, false
	}
	resp := a.QuestionnaireResponse()
	if resp == nil {
		return nil, false
	}

	filled := questionnaire.FillMissing(resp, def, fillContextFor(profile, a.Description))
	raw, err := json.Marshal(filled)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func fillContextFor(profile *patient.Profile, clinicalContext string) questionnaire.FillContext {
	ctx := questionnaire.FillContext{
		ClinicalContext: clinicalContext,
		Urgency:         urgencyFrom(clinicalContext),
	}
	if profile == nil {
		return ctx
	}
	ctx.PatientName = profile.FullName
	ctx.PatientDOB = profile.DateOfBirth
	ctx.PatientGender = profile.Gender
	ctx.PatientMRN = profile.MRN
	ctx.PatientPhone = profile.PrimaryPhone
	ctx.PatientEmail = profile.Email
	ctx.PreferredPharmacy = profile.PreferredPharmacy
	ctx.Insurance = profile.Insurance
	if profile.Age != nil {
		ctx.PatientAge = fmt.Sprintf("%d", *profile.Age)
	}
	if profile.Address != nil {
		ctx.PatientAddress = profile.Address.Full
	}
	if len(profile.EmergencyContacts) > 0 {
		ctx.EmergencyContactName = profile.EmergencyContacts[0].Name
		ctx.EmergencyContactPhone = profile.EmergencyContacts[0].Phone
	}
	return ctx
}

func urgencyFrom(description string) string {
	lower := strings.ToLower(description)
	switch {
	case strings.Contains(lower, "stat") || strings.Contains(lower, "immediate"):
		return "stat"
	case strings.Contains(lower, "urgent"):
		return "urgent"
	}
	return "routine"
}

// ActionUpdate carries the editable fields of an action. Nil means leave
// unchanged; Answers re-serializes flat form edits back into the draft
// QuestionnaireResponse.
type ActionUpdate struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	DoseInfo    *string        `json:"doseInfo"`
	Pharmacy    *string        `json:"pharmacy"`
	Rationale   *string        `json:"rationale"`
	Email       *string        `json:"email"`
	Subject     *string        `json:"subject"`
	Body        *string        `json:"body"`
	When        *string        `json:"when"`
	Answers     map[string]any `json:"answers"`
}

// UpdateAction edits a pending action.
func (s *Service) UpdateAction(ctx context.Context, sessionID, actionID string, update ActionUpdate) (*Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	action := sess.FindAction(actionID)
	if action == nil {
		return nil, ErrActionNotFound
	}
	if action.Status != StatusPending {
		return nil, fmt.Errorf("%w: %s actions cannot be edited", ErrInvalidStatus, action.Status)
	}

	setIf := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setIf(&action.Title, update.Title)
	setIf(&action.Description, update.Description)
	setIf(&action.DoseInfo, update.DoseInfo)
	setIf(&action.Pharmacy, update.Pharmacy)
	setIf(&action.Rationale, update.Rationale)
	setIf(&action.Email, update.Email)
	setIf(&action.Subject, update.Subject)
	setIf(&action.Body, update.Body)
	setIf(&action.When, update.When)

	if len(update.Answers) > 0 {
		if err := s.applyAnswerEdits(ctx, action, update.Answers); err != nil {
			return nil, err
		}
	}

	sess.UpdatedAt = time.Now()
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// applyAnswerEdits merges flat linkId→value edits into the action's
// QuestionnaireResponse by re-nesting against the form definition.
func (s *Service) applyAnswerEdits(ctx context.Context, action *Action, answers map[string]any) error {
	if action.QuestionnaireID == "" {
		return fmt.Errorf("action %s has no questionnaire to edit answers for", action.ID)
	}
	def, err := s.forms.Get(ctx, action.QuestionnaireID)
	if err != nil {
		return fmt.Errorf("read questionnaire: %w", err)
	}

	resp := action.QuestionnaireResponse()
	if resp == nil {
		resp = &questionnaire.Response{
			ResourceType:  "QuestionnaireResponse",
			Questionnaire: fmt.Sprintf("Questionnaire/%s", action.QuestionnaireID),
			Status:        "in-progress",
		}
	}

	flat := questionnaire.Flatten(resp.Item)
	for k, v := range answers {
		if v == nil {
			delete(flat, k)
			continue
		}
		flat[k] = v
	}
	resp.Item = questionnaire.Nest(def, flat)

	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	action.Resource = raw
	return nil
}

// Approve marks a pending action approved. Form-backed actions must be 100%
// complete; scheduling actions get their email content frozen with defaults
// filled in.
func (s *Service) Approve(ctx context.Context, sessionID, actionID string) (*Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	action := sess.FindAction(actionID)
	if action == nil {
		return nil, ErrActionNotFound
	}
	if action.Status != StatusPending {
		return nil, fmt.Errorf("%w: action is %s", ErrInvalidStatus, action.Status)
	}

	if action.Type == TypeScheduling {
		// Freeze the outgoing email at approval time.
		if action.Subject == "" {
			action.Subject = "Follow-up: " + action.Title
		}
		if action.Body == "" {
			action.Body = action.Description
		}
		if action.Email == "" && sess.Patient != nil {
			action.Email = sess.Patient.Email
		}
	} else if action.QuestionnaireResponse() != nil {
		if pct := action.Completion(); pct < 100 {
			return nil, fmt.Errorf("%w: %d%% complete", ErrIncomplete, pct)
		}
	}

	now := time.Now()
	action.Status = StatusApproved
	action.ApprovedAt = &now
	sess.UpdatedAt = now

	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Reject marks a pending action rejected.
func (s *Service) Reject(ctx context.Context, sessionID, actionID string) (*Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	action := sess.FindAction(actionID)
	if action == nil {
		return nil, ErrActionNotFound
	}
	if action.Status != StatusPending {
		return nil, fmt.Errorf("%w: action is %s", ErrInvalidStatus, action.Status)
	}

	action.Status = StatusRejected
	sess.UpdatedAt = time.Now()
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Reopen moves a reviewed, unapplied action back to pending. Available only
// when the deployment enables it.
func (s *Service) Reopen(ctx context.Context, sessionID, actionID string) (*Session, error) {
	if !s.allowReopen {
		return nil, ErrReopenDisabled
	}
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	action := sess.FindAction(actionID)
	if action == nil {
		return nil, ErrActionNotFound
	}
	if action.Status == StatusPending {
		return nil, fmt.Errorf("%w: action is already pending", ErrInvalidStatus)
	}
	if action.Applied {
		return nil, fmt.Errorf("%w: action was already written to the store", ErrInvalidStatus)
	}

	action.Status = StatusPending
	action.ApprovedAt = nil
	sess.UpdatedAt = time.Now()
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ApplyResult reports the outcome of writing one action to the store.
type ApplyResult struct {
	ActionID     string `json:"actionId"`
	Success      bool   `json:"success"`
	ResourceID   string `json:"resourceId,omitempty"`
	ResourceType string `json:"resourceType,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Apply writes every approved, unapplied action to the EMR store. Each
// action succeeds or fails on its own; failed actions stay approved and
// unapplied so the clinician can retry after fixing the cause. Scheduling
// actions don't produce store writes; their email goes out with the
// aftercare summary.
func (s *Service) Apply(ctx context.Context, sessionID string) (*Session, []ApplyResult, error) {
	release, err := s.guard.begin(sessionID, "apply")
	if err != nil {
		return nil, nil, err
	}
	defer release()

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.Patient == nil {
		return nil, nil, fmt.Errorf("session has no patient")
	}

	var results []ApplyResult
	for i := range sess.Actions {
		action := &sess.Actions[i]
		if action.Status != StatusApproved || action.Applied || action.Type == TypeScheduling {
			continue
		}

		resourceType, payload, err := buildResource(action, sess.Patient.ID)
		if err != nil {
			results = append(results, ApplyResult{ActionID: action.ID, Error: err.Error()})
			continue
		}

		created, err := s.writer.CreateResource(ctx, resourceType, payload)
		if err != nil {
			s.logger.Error().Err(err).Str("action_id", action.ID).Str("resource_type", resourceType).Msg("store rejected action")
			results = append(results, ApplyResult{ActionID: action.ID, ResourceType: resourceType, Error: err.Error()})
			continue
		}

		var stored struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(created, &stored)
		action.Applied = true
		action.AppliedResourceID = stored.ID
		action.AppliedResourceType = resourceType
		results = append(results, ApplyResult{
			ActionID:     action.ID,
			Success:      true,
			ResourceID:   stored.ID,
			ResourceType: resourceType,
		})
	}

	sess.UpdatedAt = time.Now()
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, nil, err
	}
	return sess, results, nil
}

// DraftAftercare asks the model for an after-visit summary email built from
// the approved actions, the transcript, and the patient context.
func (s *Service) DraftAftercare(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	prompt := aftercareSystemPrompt + "\n\n" + buildAftercarePrompt(sess)
	completion, err := s.extractor.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("aftercare drafting: %w", err)
	}
	raw, err := llm.ExtractJSON(completion)
	if err != nil {
		return nil, fmt.Errorf("aftercare draft malformed: %w", err)
	}
	var draft struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, fmt.Errorf("aftercare draft malformed: %w", err)
	}
	if draft.Subject == "" || draft.Body == "" {
		return nil, fmt.Errorf("aftercare draft missing subject or body")
	}

	sess.Aftercare = &AftercareDraft{
		Subject:     draft.Subject,
		Body:        draft.Body,
		GeneratedAt: time.Now(),
	}
	sess.UpdatedAt = time.Now()
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SendAftercare delivers the drafted email. The recipient defaults to the
// patient's email on file.
func (s *Service) SendAftercare(ctx context.Context, sessionID, recipient string) (*Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Aftercare == nil {
		return nil, fmt.Errorf("no aftercare draft for session %s", sessionID)
	}
	if recipient == "" && sess.Patient != nil {
		recipient = sess.Patient.Email
	}
	if recipient == "" {
		return nil, fmt.Errorf("no recipient for aftercare email")
	}

	if err := s.email.Send(ctx, recipient, sess.Aftercare.Subject, sess.Aftercare.Body); err != nil {
		return nil, fmt.Errorf("send aftercare: %w", err)
	}

	now := time.Now()
	sess.Aftercare.SentTo = recipient
	sess.Aftercare.SentAt = &now
	sess.UpdatedAt = now
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}
