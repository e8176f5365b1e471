package questionnaire

import (
	"strings"
	"time"
)

// FillContext carries real patient data and clinical context for the gap
// filler. Real values always win over placeholders.
type FillContext struct {
	PatientName           string
	PatientAge            string
	PatientDOB            string
	PatientGender         string
	PatientMRN            string
	PatientPhone          string
	PatientEmail          string
	PatientAddress        string
	EmergencyContactName  string
	EmergencyContactPhone string
	PreferredPharmacy     string
	Insurance             string
	ClinicalContext       string
	Urgency               string // stat, urgent, routine
}

// ContextFromMap builds a FillContext from the flat patient-context keys the
// patient profile exports (patient_name, date_of_birth, ...).
func ContextFromMap(m map[string]string) FillContext {
	return FillContext{
		PatientName:           m["patient_name"],
		PatientAge:            m["age"],
		PatientDOB:            m["date_of_birth"],
		PatientGender:         m["gender"],
		PatientMRN:            m["mrn"],
		PatientPhone:          m["phone"],
		PatientEmail:          m["email"],
		PatientAddress:        m["address"],
		EmergencyContactName:  m["emergency_contact_name"],
		EmergencyContactPhone: m["emergency_contact_phone"],
		PreferredPharmacy:     m["pharmacy"],
		Insurance:             m["insurance"],
		ClinicalContext:       m["clinical_context"],
		Urgency:               m["urgency"],
	}
}

func (c FillContext) clinicalContains(subs ...string) bool {
	lower := strings.ToLower(c.ClinicalContext)
	for _, s := range subs {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// Dummy rules run in order; the first rule whose predicate matches the
// lower-cased linkId produces the value. Demographic rules sit before
// clinical ones so "patient_name" never falls through to a clinical default.
type dummyRule struct {
	match func(linkID string) bool
	value func(item Item, ctx FillContext) any
}

func idHas(subs ...string) func(string) bool {
	return func(linkID string) bool {
		for _, s := range subs {
			if strings.Contains(linkID, s) {
				return true
			}
		}
		return false
	}
}

func idHasAll(subs ...string) func(string) bool {
	return func(linkID string) bool {
		for _, s := range subs {
			if !strings.Contains(linkID, s) {
				return false
			}
		}
		return true
	}
}

var dummyRules = []dummyRule{
	{idHasAll("patient", "name"), func(_ Item, ctx FillContext) any {
		return orDefault(ctx.PatientName, "John Doe")
	}},
	{idHas("dob", "birth"), func(_ Item, ctx FillContext) any {
		if ctx.PatientDOB != "" {
			return ctx.PatientDOB
		}
		return time.Now().AddDate(-45, 0, 0).Format("2006") + "-06-15"
	}},
	{idHas("age"), func(_ Item, ctx FillContext) any {
		return orDefault(ctx.PatientAge, "45")
	}},
	{idHas("gender", "sex"), func(_ Item, ctx FillContext) any {
		return orDefault(ctx.PatientGender, "Unknown")
	}},
	{idHas("mrn"), func(_ Item, ctx FillContext) any {
		return orDefault(ctx.PatientMRN, "MRN-on-file")
	}},
	{idHasAll("medical", "record"), func(_ Item, ctx FillContext) any {
		return orDefault(ctx.PatientMRN, "MRN-on-file")
	}},
	{idHas("phone", "telephone"), func(_ Item, ctx FillContext) any {
		return orDefault(ctx.PatientPhone, "555-0123")
	}},
	{idHas("email"), func(_ Item, ctx FillContext) any {
		return orDefault(ctx.PatientEmail, "patient@example.com")
	}},
	{idHas("address"), func(_ Item, ctx FillContext) any {
		return orDefault(ctx.PatientAddress, "123 Main Street, Anytown, ST 12345")
	}},
	{idHasAll("emergency", "contact"), func(item Item, ctx FillContext) any {
		linkID := strings.ToLower(item.LinkID)
		if strings.Contains(linkID, "phone") {
			return orDefault(ctx.EmergencyContactPhone, "555-0124")
		}
		return orDefault(ctx.EmergencyContactName, "Emergency Contact")
	}},
	{idHas("examtype"), func(_ Item, ctx FillContext) any {
		if ctx.clinicalContains("head", "brain") {
			return "CT Brain (non-contrast)"
		}
		return "Standard examination"
	}},
	{idHas("bodyregion"), func(_ Item, ctx FillContext) any {
		if ctx.clinicalContains("brain", "head") {
			return "Brain/Head"
		}
		if ctx.clinicalContains("chest") {
			return "Chest"
		}
		return "See clinical indication"
	}},
	{idHas("contrast"), func(item Item, _ FillContext) any {
		if item.Type == "boolean" {
			return false
		}
		return "No contrast"
	}},
	{idHas("priority"), func(_ Item, ctx FillContext) any {
		switch ctx.Urgency {
		case "stat":
			return "STAT"
		case "urgent":
			return "Urgent"
		}
		return "Routine"
	}},
	{idHas("indication", "reason", "diagnosis"), func(_ Item, ctx FillContext) any {
		return orDefault(ctx.ClinicalContext, "Clinical evaluation required")
	}},
	{idHas("contraindication"), func(_ Item, _ FillContext) any { return "None known" }},
	{idHas("allerg"), func(_ Item, _ FillContext) any { return "No known allergies" }},
	{idHas("pregnan"), func(item Item, _ FillContext) any {
		if item.Type == "boolean" {
			return false
		}
		return "Not pregnant / Not applicable"
	}},
	{idHas("implant", "pacemaker", "metal", "claustrophobia"), func(item Item, _ FillContext) any {
		if item.Type == "boolean" {
			return false
		}
		return "No"
	}},
	// No rule for the medication name itself: a drug is never guessed, the
	// field stays empty so the form flags it for the clinician.
	{idHas("dosage", "dose"), func(_ Item, _ FillContext) any { return "Standard dose per protocol" }},
	{idHas("route"), func(_ Item, _ FillContext) any { return "Oral" }},
	{idHas("frequency"), func(_ Item, _ FillContext) any { return "As directed" }},
	{idHas("duration"), func(_ Item, _ FillContext) any { return "7 days" }},
	{idHas("quantity"), func(item Item, _ FillContext) any {
		if strings.Contains(strings.ToLower(item.LinkID), "refill") {
			return "0"
		}
		return "30"
	}},
	{idHas("refill"), func(item Item, _ FillContext) any {
		if item.Type == "integer" || item.Type == "decimal" {
			return 0
		}
		return "No refills"
	}},
	{idHas("provider", "physician", "prescriber", "ordering"), func(_ Item, _ FillContext) any {
		return "Ordering provider on file"
	}},
	{idHas("npi"), func(_ Item, _ FillContext) any { return "NPI on file" }},
	{idHas("dea"), func(_ Item, _ FillContext) any { return "DEA on file" }},
	{idHas("signature", "sign"), func(_ Item, _ FillContext) any { return "Electronically signed" }},
	{idHas("pharmacy"), func(_ Item, ctx FillContext) any {
		return orDefault(ctx.PreferredPharmacy, "Patient preferred pharmacy")
	}},
	{idHas("scheduling", "appointment"), func(_ Item, ctx FillContext) any {
		if ctx.Urgency == "stat" {
			return "Immediate - STAT order"
		}
		return "Schedule at earliest availability"
	}},
	{idHas("transport", "sedation", "fasting"), func(item Item, _ FillContext) any {
		if item.Type == "boolean" {
			return false
		}
		return "Not required"
	}},
	{idHas("instruction", "note", "comment"), func(_ Item, _ FillContext) any {
		return "See clinical indication for details"
	}},
	{idHas("special"), func(_ Item, _ FillContext) any { return "None" }},
	{idHas("insurance"), func(_ Item, ctx FillContext) any {
		return orDefault(ctx.Insurance, "Patient insurance on file")
	}},
}

// DummyValue produces a plausible placeholder for an unanswered item. The
// keyword rules above fire first; otherwise the item type decides. The
// result is never absent, though text fields may be an empty string so the
// form can highlight them for the clinician.
func DummyValue(item Item, ctx FillContext) any {
	linkID := strings.ToLower(item.LinkID)

	for _, rule := range dummyRules {
		if !rule.match(linkID) {
			continue
		}
		v := rule.value(item, ctx)
		// A date-typed item only takes a rule value that is actually a
		// date; "appointment_date" must not end up holding a scheduling
		// phrase. Anything else falls through to the type default.
		if item.Type == "date" || item.Type == "dateTime" || item.Type == "time" {
			if s, ok := v.(string); ok && isTemporal(s) {
				return s
			}
			break
		}
		// A choice item only takes a rule value that names one of its
		// options; free text can't be stored where the form expects a code.
		if item.Type == "choice" && len(item.AnswerOption) > 0 {
			if s, ok := v.(string); ok {
				for _, opt := range item.AnswerOption {
					if strings.EqualFold(opt.Code(), s) || strings.EqualFold(opt.Display(), s) {
						return opt.Code()
					}
				}
			}
			break
		}
		return v
	}

	switch item.Type {
	case "boolean":
		return false
	case "integer":
		return 0
	case "decimal":
		return 0.0
	case "date":
		if strings.Contains(linkID, "appointment") || strings.Contains(linkID, "schedule") || strings.Contains(linkID, "followup") {
			return time.Now().AddDate(0, 0, 7).Format("2006-01-02")
		}
		return time.Now().Format("2006-01-02")
	case "dateTime":
		if strings.Contains(linkID, "appointment") || strings.Contains(linkID, "schedule") {
			next := time.Now().AddDate(0, 0, 7)
			return time.Date(next.Year(), next.Month(), next.Day(), 14, 0, 0, 0, next.Location()).Format(time.RFC3339)
		}
		return time.Now().Format(time.RFC3339)
	case "time":
		return clinicHours[int(time.Now().UnixNano())%len(clinicHours)]
	case "choice":
		if len(item.AnswerOption) > 0 {
			return item.AnswerOption[0].Code()
		}
		return ""
	default:
		return ""
	}
}

// Typical appointment slots.
var clinicHours = []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}

func isTemporal(s string) bool {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "15:04"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
