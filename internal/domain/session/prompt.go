package session

import (
	"fmt"
	"strings"

	"github.com/shreyaskommuri/ClinicAct/internal/domain/patient"
	"github.com/shreyaskommuri/ClinicAct/internal/domain/questionnaire"
)

const analyzeSystemPrompt = `You are an expert Clinical AI Assistant specializing in FHIR R4.

Your task is to analyze clinical consultation transcripts and extract actionable clinical intents that can be converted into FHIR R4 resources.

CRITICAL RULES:
1. Output strictly raw JSON. No markdown formatting, no code blocks, no explanations.
2. Extract clinical actions into an array called "actions".
3. For each action, generate a draft FHIR resource:
   - MedicationRequest for medications/prescriptions
   - ServiceRequest for labs, imaging, referrals
   - QuestionnaireResponse for screenings
   - Appointment for follow-ups and scheduling
4. Include a human-readable "description" for UI display. Where available, also include a short "title", a clinical "rationale", "doseInfo" and "pharmacy" for medications, and "safetyFlag" with "safetyMessage" when the transcript mentions an allergy, interaction, or contraindication relevant to the action.
5. Categorize each action with a "type": "medication", "lab", "imaging", "referral", "followup", "questionnaire_response", or "scheduling".
6. QUESTIONNAIRE MATCHING RULES - STRICT:
   - When the user message includes AVAILABLE QUESTIONNAIRES, you MUST ONLY select from that exact list.
   - If a clinical action does not have a matching questionnaire, DO NOT include that action unless it is a scheduling action.
   - Include "questionnaireId" and "questionnaireName" for every action that has a matching questionnaire.
7. For "scheduling" actions you MUST include "reason", "when", a user-friendly "subject", and a warm "body" that summarizes the consultation, includes follow-up instructions, and mentions insurance, pharmacy and practitioner information when provided. Never write "Unknown" or "Not specified" in email bodies; omit fields without values.
8. For choice fields, select ONE of the provided options and answer with valueCoding using the EXACT code and display shown. Never invent codes.
9. For boolean fields use valueBoolean. Fill an item for EVERY linkId in the chosen questionnaire; for groups, nest child items inside an "item" array.

OUTPUT FORMAT (raw JSON only):
{"actions": [{"type": "...", "description": "...", "questionnaireId": "...", "questionnaireName": "...", "resource": {...}}]}`

// buildAnalyzePrompt assembles the user message for extraction: transcript,
// exact patient values for demographic fields, and the available form
// definitions with their option codes so choice answers come back aligned.
func buildAnalyzePrompt(transcript string, p *patient.Profile, forms []formDefinition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this clinical consultation transcript and extract actionable clinical intents:\n\n%s", transcript)

	if p != nil {
		b.WriteString("\n\nPATIENT INFORMATION (use these EXACT values for patient demographic fields):\n")
		writeIfSet := func(label, v string) {
			if v != "" {
				fmt.Fprintf(&b, "- %s: %s\n", label, v)
			}
		}
		writeIfSet("Patient Name", p.FullName)
		writeIfSet("Date of Birth", p.DateOfBirth)
		if p.Age != nil {
			fmt.Fprintf(&b, "- Age: %d\n", *p.Age)
		}
		writeIfSet("Gender", p.Gender)
		writeIfSet("MRN", p.MRN)
		writeIfSet("Phone", p.PrimaryPhone)
		writeIfSet("Email", p.Email)
		if p.Address != nil {
			writeIfSet("Address", p.Address.Full)
		}
		if len(p.EmergencyContacts) > 0 {
			writeIfSet("Emergency Contact", p.EmergencyContacts[0].Name)
			writeIfSet("Emergency Phone", p.EmergencyContacts[0].Phone)
		}
		writeIfSet("Preferred Pharmacy", p.PreferredPharmacy)
		writeIfSet("Insurance", p.Insurance)
		writeIfSet("Primary Care Provider", p.PrimaryCareProvider)
		b.WriteString(`
Use exact patient values for demographic fields; extract clinical fields from the transcript; for everything else provide realistic clinical values, never placeholders like "N/A" or "[value]".
`)
	}

	if len(forms) > 0 {
		b.WriteString("\n\nAVAILABLE QUESTIONNAIRES:\n")
		for _, f := range forms {
			fmt.Fprintf(&b, "\n**Questionnaire: %s** (ID: %s, Type: %s)\n", f.summary.Name, f.summary.ID, f.summary.Type)
			if f.summary.Title != "" {
				fmt.Fprintf(&b, "Title: %s\n", f.summary.Title)
			}
			if f.summary.Description != "" {
				fmt.Fprintf(&b, "Description: %s\n", f.summary.Description)
			}
			b.WriteString("Fields:\n")
			writeItems(&b, f.definition.Item, "  ")
		}
	}

	return b.String()
}

func writeItems(b *strings.Builder, items []questionnaire.Item, indent string) {
	for _, item := range items {
		fmt.Fprintf(b, "%s- linkId: %q, text: %q, type: %s", indent, item.LinkID, item.Text, item.Type)
		if item.Required {
			b.WriteString(" (REQUIRED)")
		}
		if len(item.AnswerOption) > 0 {
			opts := make([]string, 0, len(item.AnswerOption))
			for _, o := range item.AnswerOption {
				if o.ValueCoding != nil {
					opts = append(opts, fmt.Sprintf("{code: %q, display: %q}", o.ValueCoding.Code, o.ValueCoding.Display))
				} else if o.ValueString != "" {
					opts = append(opts, fmt.Sprintf("%q", o.ValueString))
				}
			}
			fmt.Fprintf(b, ", options: [%s]", strings.Join(opts, ", "))
		}
		b.WriteString("\n")
		if len(item.Item) > 0 {
			writeItems(b, item.Item, indent+"  ")
		}
	}
}

const aftercareSystemPrompt = `You are a helpful medical assistant drafting a patient after-visit summary email.
Create a SINGLE, WARM, USER-FRIENDLY email that consolidates all information: a friendly opening, a summary of what was discussed, and clear next steps covering every approved action provided (medications with instructions, labs and imaging with reasons, referrals, screenings, follow-ups). If a scheduling action carries a subject or body, incorporate them. Close warmly and remind the patient where their practice is located.
Use plain text only: no markdown symbols, line breaks for structure, "Medication: [name] [dose]" style lines.
Output purely a JSON object with two keys, "subject" and "body". No markdown around the JSON.`

// buildAftercarePrompt assembles the user message for the after-visit email.
func buildAftercarePrompt(s *Session) string {
	grouped := map[string][]map[string]string{}
	for _, a := range s.ApprovedActions() {
		entry := map[string]string{"title": a.Title, "description": a.Description}
		if a.DoseInfo != "" {
			entry["doseInfo"] = a.DoseInfo
		}
		if a.Subject != "" {
			entry["subject"] = a.Subject
		}
		if a.Body != "" {
			entry["body"] = a.Body
		}
		if a.When != "" {
			entry["when"] = a.When
		}
		grouped[a.Type] = append(grouped[a.Type], entry)
	}

	var b strings.Builder
	b.WriteString("Patient Details:\n")
	if p := s.Patient; p != nil {
		fmt.Fprintf(&b, "Patient: %s\n", p.FullName)
		if p.Address != nil {
			fmt.Fprintf(&b, "Address: %s\n", p.Address.Full)
		}
		if p.PreferredPharmacy != "" {
			fmt.Fprintf(&b, "Preferred Pharmacy: %s\n", p.PreferredPharmacy)
		}
		if p.PrimaryCareProvider != "" {
			fmt.Fprintf(&b, "Practitioner: %s\n", p.PrimaryCareProvider)
		}
	} else {
		b.WriteString("Patient information not available.\n")
	}

	b.WriteString("\nHere is the transcript of the visit:\n")
	if s.Transcript != "" {
		b.WriteString(s.Transcript)
	} else {
		b.WriteString("No transcript available.")
	}

	b.WriteString("\n\nHere are the approved actions to include:\n")
	for actionType, entries := range grouped {
		fmt.Fprintf(&b, "\n%s:\n", actionType)
		for _, e := range entries {
			fmt.Fprintf(&b, "  - %s", e["description"])
			if e["doseInfo"] != "" {
				fmt.Fprintf(&b, " (%s)", e["doseInfo"])
			}
			if e["when"] != "" {
				fmt.Fprintf(&b, " [when: %s]", e["when"])
			}
			b.WriteString("\n")
			if e["body"] != "" {
				fmt.Fprintf(&b, "    email body to incorporate: %s\n", e["body"])
			}
		}
	}

	b.WriteString("\nPlease draft the email.")
	return b.String()
}
