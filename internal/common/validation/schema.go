package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema.
type Schema struct {
	schema *gojsonschema.Schema
}

// CompileSchema parses a JSON schema document.
func CompileSchema(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompileSchema is CompileSchema for package-level schemas.
func MustCompileSchema(schemaJSON string) *Schema {
	s, err := CompileSchema(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateJSON validates a raw JSON document. Malformed JSON is reported as
// a single root-level error rather than a Go error.
func (s *Schema) ValidateJSON(document []byte) *ValidationResult {
	return s.validate(gojsonschema.NewBytesLoader(document))
}

// ValidateValue validates an already decoded Go value.
func (s *Schema) ValidateValue(document interface{}) *ValidationResult {
	return s.validate(gojsonschema.NewGoLoader(document))
}

func (s *Schema) validate(doc gojsonschema.JSONLoader) *ValidationResult {
	result, err := s.schema.Validate(doc)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "INVALID_JSON",
			}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	e164Pattern  = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone validates an E.164 phone number such as +15551234567.
func ValidatePhone(phone string) bool {
	return e164Pattern.MatchString(phone)
}
