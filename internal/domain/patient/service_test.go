package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/fhir"
)

type mockStore struct {
	resources map[string]json.RawMessage
	bundles   map[string]*fhir.Bundle
}

func (m *mockStore) ReadResource(_ context.Context, resourceType, id string) (json.RawMessage, error) {
	raw, ok := m.resources[resourceType+"/"+id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return raw, nil
}

func (m *mockStore) Search(_ context.Context, resourceType string, _ url.Values) (*fhir.Bundle, error) {
	b, ok := m.bundles[resourceType]
	if !ok {
		return &fhir.Bundle{ResourceType: "Bundle"}, nil
	}
	return b, nil
}

const samplePatient = `{
  "resourceType": "Patient",
  "id": "p1",
  "name": [
    {"given": ["Maria", "Elena"], "family": "Santos", "prefix": ["Ms."]},
    {"use": "nickname", "given": ["Mari"]}
  ],
  "identifier": [
    {"type": {"coding": [{"code": "MR"}]}, "value": "MRN-001"},
    {"type": {"text": "Driver License"}, "value": "DL-9"}
  ],
  "telecom": [
    {"system": "phone", "use": "mobile", "value": "555-0101"},
    {"system": "phone", "use": "home", "value": "555-0102"},
    {"system": "email", "value": "maria@example.com"}
  ],
  "birthDate": "1980-03-15",
  "gender": "female",
  "maritalStatus": {"text": "Married"},
  "address": [{"line": ["12 Oak St", "Apt 4"], "city": "Austin", "state": "TX", "postalCode": "78701"}],
  "contact": [{
    "name": {"given": ["Jorge"], "family": "Santos"},
    "relationship": [{"coding": [{"display": "Spouse"}]}],
    "telecom": [{"system": "phone", "value": "555-0103"}]
  }],
  "communication": [{"language": {"text": "Spanish"}, "preferred": true}],
  "generalPractitioner": [{"display": "Dr. Lee"}],
  "active": true
}`

func TestFromFHIR(t *testing.T) {
	p, err := FromFHIR(json.RawMessage(samplePatient))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.FullName != "Maria Elena Santos" {
		t.Errorf("fullName = %q", p.FullName)
	}
	if p.Nickname != "Mari" {
		t.Errorf("nickname = %q", p.Nickname)
	}
	if p.MRN != "MRN-001" {
		t.Errorf("mrn = %q", p.MRN)
	}
	if len(p.OtherIdentifiers) != 1 || p.OtherIdentifiers[0].Type != "Driver License" {
		t.Errorf("otherIdentifiers = %+v", p.OtherIdentifiers)
	}
	if p.MobilePhone != "555-0101" || p.HomePhone != "555-0102" {
		t.Errorf("phones = %q / %q", p.MobilePhone, p.HomePhone)
	}
	if p.PrimaryPhone != "555-0102" {
		t.Errorf("primaryPhone = %q, want home number", p.PrimaryPhone)
	}
	if p.Email != "maria@example.com" {
		t.Errorf("email = %q", p.Email)
	}
	if p.Address == nil || p.Address.Street != "12 Oak St, Apt 4" {
		t.Errorf("address = %+v", p.Address)
	}
	if p.Address.Full != "12 Oak St, Apt 4, Austin, TX 78701" {
		t.Errorf("address.full = %q", p.Address.Full)
	}
	if len(p.EmergencyContacts) != 1 {
		t.Fatalf("emergencyContacts = %d", len(p.EmergencyContacts))
	}
	if ec := p.EmergencyContacts[0]; ec.Name != "Jorge Santos" || ec.Relationship != "Spouse" || ec.Phone != "555-0103" {
		t.Errorf("contact = %+v", ec)
	}
	if p.PreferredLanguage != "Spanish" {
		t.Errorf("preferredLanguage = %q", p.PreferredLanguage)
	}
	if p.PrimaryCareProvider != "Dr. Lee" {
		t.Errorf("pcp = %q", p.PrimaryCareProvider)
	}
	if p.Age == nil {
		t.Fatal("expected derived age")
	}
	wantAge := ageFrom(t, "1980-03-15")
	if *p.Age != wantAge {
		t.Errorf("age = %d, want %d", *p.Age, wantAge)
	}
}

func ageFrom(t *testing.T, birth string) int {
	t.Helper()
	b, err := time.Parse("2006-01-02", birth)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	age := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		age--
	}
	return age
}

func TestFromFHIR_SparseResource(t *testing.T) {
	p, err := FromFHIR(json.RawMessage(`{"resourceType":"Patient","id":"p2"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.MRN != "N/A" {
		t.Errorf("mrn = %q, want N/A", p.MRN)
	}
	if p.DateOfBirth != "Unknown" {
		t.Errorf("dateOfBirth = %q, want Unknown", p.DateOfBirth)
	}
	if p.Age != nil {
		t.Error("expected no age without birthDate")
	}
	if !p.Active {
		t.Error("expected active by default")
	}
}

func TestFormContext(t *testing.T) {
	p, err := FromFHIR(json.RawMessage(samplePatient))
	if err != nil {
		t.Fatal(err)
	}
	p.Insurance = "Blue Cross"
	p.PreferredPharmacy = "Walgreens on 5th"

	ctx := p.FormContext()
	if ctx["patient_name"] != "Maria Elena Santos" {
		t.Errorf("patient_name = %q", ctx["patient_name"])
	}
	if ctx["insurance"] != "Blue Cross" {
		t.Errorf("insurance = %q", ctx["insurance"])
	}
	if ctx["pharmacy"] != "Walgreens on 5th" {
		t.Errorf("pharmacy = %q", ctx["pharmacy"])
	}
	if ctx["emergency_contact_name"] != "Jorge Santos" {
		t.Errorf("emergency_contact_name = %q", ctx["emergency_contact_name"])
	}
	if _, ok := ctx["middle_name"]; ok {
		t.Error("unexpected key")
	}
}

func TestService_Get(t *testing.T) {
	store := &mockStore{resources: map[string]json.RawMessage{
		"Patient/p1": json.RawMessage(samplePatient),
	}}
	svc := NewService(store)

	p, err := svc.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "p1" {
		t.Errorf("id = %q", p.ID)
	}

	if _, err := svc.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing patient")
	}
}

func TestService_SearchSkipsBadEntries(t *testing.T) {
	store := &mockStore{bundles: map[string]*fhir.Bundle{
		"Patient": {
			ResourceType: "Bundle",
			Entry: []fhir.BundleEntry{
				{Resource: json.RawMessage(samplePatient)},
				{Resource: json.RawMessage(`not json`)},
			},
		},
	}}
	svc := NewService(store)

	got, err := svc.Search(context.Background(), "santos", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("results = %d, want 1", len(got))
	}
}
