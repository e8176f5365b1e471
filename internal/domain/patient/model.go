// Package patient normalizes FHIR Patient resources into the flat profile
// the rest of the service works with: prompt building, form autofill, and
// the review UI all consume the Profile shape instead of raw FHIR.
package patient

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/fhir"
)

// Address is the structured primary address plus a display string.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country,omitempty"`
	Full       string `json:"full"`
}

// EmergencyContact is one Patient.contact entry.
type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
}

// Identifier is a non-MRN identifier carried through for display.
type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Profile is the normalized patient. Missing FHIR elements become zero
// values; MRN and date of birth fall back to explicit sentinels because the
// review surface always shows them.
type Profile struct {
	ID  string `json:"id"`
	MRN string `json:"mrn"`

	FullName   string `json:"fullName"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName"`
	Prefix     string `json:"prefix,omitempty"`
	Suffix     string `json:"suffix,omitempty"`
	Nickname   string `json:"nickname,omitempty"`

	DateOfBirth   string `json:"dateOfBirth"`
	Age           *int   `json:"age,omitempty"`
	Gender        string `json:"gender,omitempty"`
	MaritalStatus string `json:"maritalStatus,omitempty"`

	PrimaryPhone string `json:"primaryPhone,omitempty"`
	MobilePhone  string `json:"mobilePhone,omitempty"`
	HomePhone    string `json:"homePhone,omitempty"`
	WorkPhone    string `json:"workPhone,omitempty"`
	Email        string `json:"email,omitempty"`

	Address           *Address           `json:"address,omitempty"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts"`

	PreferredLanguage string   `json:"preferredLanguage,omitempty"`
	Languages         []string `json:"languages,omitempty"`

	PrimaryCareProvider  string `json:"primaryCareProvider,omitempty"`
	ManagingOrganization string `json:"managingOrganization,omitempty"`

	Active   bool `json:"active"`
	Deceased bool `json:"deceased"`

	// Supplied by the consult context rather than the Patient resource.
	Insurance         string `json:"insurance,omitempty"`
	PreferredPharmacy string `json:"preferredPharmacy,omitempty"`

	OtherIdentifiers []Identifier `json:"otherIdentifiers"`
}

// Wire shape of the FHIR Patient elements we read.
type fhirPatient struct {
	ID   string `json:"id"`
	Name []struct {
		Use    string   `json:"use"`
		Text   string   `json:"text"`
		Family string   `json:"family"`
		Given  []string `json:"given"`
		Prefix []string `json:"prefix"`
		Suffix []string `json:"suffix"`
	} `json:"name"`
	Identifier []struct {
		Type  fhir.CodeableConcept `json:"type"`
		Value string               `json:"value"`
	} `json:"identifier"`
	Telecom []struct {
		System string `json:"system"`
		Use    string `json:"use"`
		Value  string `json:"value"`
	} `json:"telecom"`
	BirthDate     string               `json:"birthDate"`
	Gender        string               `json:"gender"`
	MaritalStatus fhir.CodeableConcept `json:"maritalStatus"`
	Address       []struct {
		Text       string   `json:"text"`
		Line       []string `json:"line"`
		City       string   `json:"city"`
		State      string   `json:"state"`
		PostalCode string   `json:"postalCode"`
		Country    string   `json:"country"`
	} `json:"address"`
	Contact []struct {
		Name struct {
			Text   string   `json:"text"`
			Family string   `json:"family"`
			Given  []string `json:"given"`
		} `json:"name"`
		Relationship []fhir.CodeableConcept `json:"relationship"`
		Telecom      []struct {
			System string `json:"system"`
			Value  string `json:"value"`
		} `json:"telecom"`
	} `json:"contact"`
	Communication []struct {
		Language  fhir.CodeableConcept `json:"language"`
		Preferred bool                 `json:"preferred"`
	} `json:"communication"`
	GeneralPractitioner  []fhir.Reference `json:"generalPractitioner"`
	ManagingOrganization *fhir.Reference  `json:"managingOrganization"`
	Active               *bool            `json:"active"`
	DeceasedBoolean      *bool            `json:"deceasedBoolean"`
	DeceasedDateTime     string           `json:"deceasedDateTime"`
}

// FromFHIR normalizes a raw FHIR Patient payload.
func FromFHIR(raw json.RawMessage) (*Profile, error) {
	var p fhirPatient
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode patient: %w", err)
	}

	profile := &Profile{
		ID:                p.ID,
		MRN:               "N/A",
		DateOfBirth:       "Unknown",
		Gender:            p.Gender,
		MaritalStatus:     p.MaritalStatus.Label(),
		Active:            p.Active == nil || *p.Active,
		Deceased:          (p.DeceasedBoolean != nil && *p.DeceasedBoolean) || p.DeceasedDateTime != "",
		EmergencyContacts: []EmergencyContact{},
		OtherIdentifiers:  []Identifier{},
	}

	if len(p.Name) > 0 {
		n := p.Name[0]
		if len(n.Given) > 0 {
			profile.FirstName = n.Given[0]
		}
		if len(n.Given) > 1 {
			profile.MiddleName = n.Given[1]
		}
		profile.LastName = n.Family
		if n.Text != "" {
			profile.FullName = n.Text
		} else {
			profile.FullName = joinNonEmpty(profile.FirstName, profile.MiddleName, profile.LastName)
		}
		if len(n.Prefix) > 0 {
			profile.Prefix = n.Prefix[0]
		}
		if len(n.Suffix) > 0 {
			profile.Suffix = n.Suffix[0]
		}
	}
	for _, n := range p.Name {
		if n.Use == "nickname" && len(n.Given) > 0 {
			profile.Nickname = n.Given[0]
			break
		}
	}

	for _, id := range p.Identifier {
		if isMRN(id.Type) {
			if id.Value != "" {
				profile.MRN = id.Value
			}
			continue
		}
		label := id.Type.Label()
		if label == "" {
			label = "Unknown"
		}
		profile.OtherIdentifiers = append(profile.OtherIdentifiers, Identifier{Type: label, Value: id.Value})
	}

	for _, t := range p.Telecom {
		switch t.System {
		case "phone":
			switch t.Use {
			case "mobile":
				profile.MobilePhone = t.Value
			case "work":
				profile.WorkPhone = t.Value
			case "home":
				profile.HomePhone = t.Value
			}
			if profile.PrimaryPhone == "" && (t.Use == "" || t.Use == "home") {
				profile.PrimaryPhone = t.Value
			}
		case "email":
			if profile.Email == "" {
				profile.Email = t.Value
			}
		}
	}
	if profile.PrimaryPhone == "" {
		profile.PrimaryPhone = profile.MobilePhone
	}

	if p.BirthDate != "" {
		profile.DateOfBirth = p.BirthDate
		if age, ok := ageFromBirthDate(p.BirthDate, time.Now()); ok {
			profile.Age = &age
		}
	}

	if len(p.Address) > 0 {
		a := p.Address[0]
		addr := &Address{
			Street:     strings.Join(a.Line, ", "),
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
		if a.Text != "" {
			addr.Full = a.Text
		} else {
			addr.Full = strings.TrimSpace(fmt.Sprintf("%s, %s, %s %s", addr.Street, addr.City, addr.State, addr.PostalCode))
		}
		profile.Address = addr
	}

	for _, c := range p.Contact {
		contact := EmergencyContact{Name: c.Name.Text}
		if contact.Name == "" {
			contact.Name = joinNonEmpty(firstOrEmpty(c.Name.Given), c.Name.Family)
		}
		if len(c.Relationship) > 0 {
			contact.Relationship = c.Relationship[0].Label()
		}
		for _, t := range c.Telecom {
			switch t.System {
			case "phone":
				if contact.Phone == "" {
					contact.Phone = t.Value
				}
			case "email":
				if contact.Email == "" {
					contact.Email = t.Value
				}
			}
		}
		profile.EmergencyContacts = append(profile.EmergencyContacts, contact)
	}

	for _, comm := range p.Communication {
		lang := comm.Language.Label()
		if lang == "" {
			continue
		}
		profile.Languages = append(profile.Languages, lang)
		if comm.Preferred && profile.PreferredLanguage == "" {
			profile.PreferredLanguage = lang
		}
	}

	if len(p.GeneralPractitioner) > 0 {
		profile.PrimaryCareProvider = p.GeneralPractitioner[0].Display
	}
	if p.ManagingOrganization != nil {
		profile.ManagingOrganization = p.ManagingOrganization.Display
	}

	return profile, nil
}

func isMRN(t fhir.CodeableConcept) bool {
	if len(t.Coding) > 0 && t.Coding[0].Code == "MR" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Text), "medical record")
}

func ageFromBirthDate(birthDate string, now time.Time) (int, bool) {
	birth, err := time.Parse("2006-01-02", birthDate)
	if err != nil {
		return 0, false
	}
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func firstOrEmpty(ss []string) string {
	if len(ss) > 0 {
		return ss[0]
	}
	return ""
}

// FormContext flattens the profile into the demographic keys the form
// autofill pipeline looks up.
func (p *Profile) FormContext() map[string]string {
	ctx := map[string]string{
		"patient_name":       p.FullName,
		"patient_first_name": p.FirstName,
		"patient_last_name":  p.LastName,
		"date_of_birth":      p.DateOfBirth,
		"gender":             p.Gender,
		"mrn":                p.MRN,
	}
	if p.Age != nil {
		ctx["age"] = fmt.Sprintf("%d", *p.Age)
	}
	if phone := p.PrimaryPhone; phone != "" {
		ctx["phone"] = phone
	}
	if p.Email != "" {
		ctx["email"] = p.Email
	}
	if p.Address != nil {
		ctx["address"] = p.Address.Full
	}
	if len(p.EmergencyContacts) > 0 {
		ctx["emergency_contact_name"] = p.EmergencyContacts[0].Name
		ctx["emergency_contact_phone"] = p.EmergencyContacts[0].Phone
	}
	if p.Insurance != "" {
		ctx["insurance"] = p.Insurance
	}
	if p.PreferredPharmacy != "" {
		ctx["pharmacy"] = p.PreferredPharmacy
	}
	for k, v := range ctx {
		if v == "" {
			delete(ctx, k)
		}
	}
	return ctx
}
