// Package fhir holds the small set of FHIR R4 wire types this service reads
// and writes when talking to the EMR store. Clinical resource payloads that
// are produced by the extraction model and only passed through are kept as
// raw JSON; only the shapes we inspect or construct are typed here.
package fhir

import (
	"encoding/json"
	"fmt"
)

// Coding is a FHIR Coding element.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept is a FHIR CodeableConcept element.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Text returns the human-readable label of a concept, preferring the
// top-level text over the first coding's display.
func (c CodeableConcept) Label() string {
	if c.Text != "" {
		return c.Text
	}
	if len(c.Coding) > 0 {
		return c.Coding[0].Display
	}
	return ""
}

// Reference is a FHIR Reference element.
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

// FormatReference builds a relative literal reference such as "Patient/123".
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}

// Resource carries only the resourceType discriminator, used to sniff raw
// payloads before deciding how to handle them.
type Resource struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
}

// BundleEntry is one entry of a search Bundle.
type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource"`
}

// Bundle is a FHIR search-set Bundle, entries kept raw for the caller to
// decode into the expected resource type.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type,omitempty"`
	Total        int           `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// OperationOutcomeIssue is one issue of an OperationOutcome.
type OperationOutcomeIssue struct {
	Severity    string `json:"severity,omitempty"`
	Code        string `json:"code,omitempty"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

// OperationOutcome is the FHIR error envelope returned by the store on
// rejected operations. Its diagnostics are surfaced verbatim to callers so
// a clinician can see why the store refused a resource.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue,omitempty"`
}

// Diagnostics flattens the outcome's issue diagnostics into one string.
func (o OperationOutcome) Diagnostics() string {
	var out string
	for i, issue := range o.Issue {
		if issue.Diagnostics == "" {
			continue
		}
		if i > 0 && out != "" {
			out += "; "
		}
		out += issue.Diagnostics
	}
	return out
}
