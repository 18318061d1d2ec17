// Package schema validates converted documents against the block document
// JSON Schema.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/iteam-company/blockpress/internal/apperr"
	"github.com/iteam-company/blockpress/internal/models"
)

const resourceName = "document.schema.json"

//go:embed document.schema.json
var documentSchema []byte

// Source returns the raw JSON Schema of the document wire format.
func Source() []byte {
	return bytes.Clone(documentSchema)
}

// Issue is one schema violation.
type Issue struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// ValidationError lists every violation of a document.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		loc := issue.Location
		if loc == "" {
			loc = "#"
		} else if !strings.HasPrefix(loc, "#") {
			loc = "#" + loc
		}
		parts = append(parts, fmt.Sprintf("%s: %s", loc, issue.Message))
	}
	return "schema: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return apperr.ErrInvalidDocument }

// Validator holds the compiled document schema. It is safe for concurrent use.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(resourceName, bytes.NewReader(documentSchema)); err != nil {
		return nil, fmt.Errorf("schema: add resource: %w", err)
	}
	sch, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}
	return &Validator{schema: sch}, nil
}

// ValidateDocument checks doc against the schema. Violations are reported
// as a *ValidationError wrapping apperr.ErrInvalidDocument.
func (v *Validator) ValidateDocument(doc *models.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("schema: encode document: %w", err)
	}
	return v.ValidateJSON(raw)
}

// ValidateJSON checks an encoded document against the schema.
func (v *Validator) ValidateJSON(raw []byte) error {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("schema: decode: %w", errors.Join(apperr.ErrInvalidDocument, err))
	}
	if err := v.schema.Validate(instance); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &ValidationError{Issues: collectIssues(verr)}
		}
		return fmt.Errorf("schema: validate: %w", err)
	}
	return nil
}

func collectIssues(err *jsonschema.ValidationError) []Issue {
	var issues []Issue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if len(node.Causes) == 0 {
			issues = append(issues, Issue{
				Location: strings.TrimSpace(node.InstanceLocation),
				Message:  strings.TrimSpace(node.Message),
			})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(err)
	return issues
}
