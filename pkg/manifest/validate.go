package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/schema"

	schemasassets "github.com/3leaps/ledgerscan/internal/assets/schemas"
	"github.com/3leaps/ledgerscan/pkg/match"
)

// SchemaID is the schema identifier for job manifests.
const SchemaID = "ledgerscan/v1.0.0/job-manifest"

// Validation errors
var (
	// ErrSchemaNotFound indicates the embedded schema is missing.
	ErrSchemaNotFound = errors.New("manifest schema not found")

	// ErrValidationFailed indicates the manifest failed validation.
	ErrValidationFailed = errors.New("manifest validation failed")
)

var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// ValidationError is a single validation issue.
type ValidationError struct {
	// Path is the JSON pointer to the problematic field (e.g., "/prefixes").
	Path string

	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects every issue found in one manifest.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "validation failed"
	case 1:
		return e[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "manifest validation failed with %d errors:", len(e))
	for _, err := range e {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// Validate checks m against the schema and the cross-field rules the
// schema cannot express. Unknown fields are already gone from a decoded
// struct; use ValidateRaw on input bytes for strict checks.
func Validate(m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to serialize manifest for validation: %w", err)
	}
	if err := ValidateRaw(data); err != nil {
		return err
	}
	return validateSemantics(m)
}

// ValidateRaw checks raw JSON against the embedded manifest schema.
func ValidateRaw(jsonData []byte) error {
	v, err := getValidator()
	if err != nil {
		return err
	}

	diags, err := v.ValidateJSON(jsonData)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	var errs ValidationErrors
	for _, d := range diags {
		if d.Severity == schema.SeverityError {
			errs = append(errs, ValidationError{Path: d.Pointer, Message: d.Message})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func getValidator() (*schema.Validator, error) {
	validatorOnce.Do(func() {
		if len(schemasassets.JobManifestSchema) == 0 {
			validatorErr = fmt.Errorf("%w: embedded job-manifest schema is empty", ErrSchemaNotFound)
			return
		}
		validator, validatorErr = schema.NewValidator(schemasassets.JobManifestSchema)
		if validatorErr != nil {
			validatorErr = fmt.Errorf("failed to compile manifest schema: %w", validatorErr)
		}
	})
	return validator, validatorErr
}

// validateSemantics applies rules that depend on parsed values.
func validateSemantics(m *Manifest) error {
	var errs ValidationErrors

	seen := make(map[string]bool, len(m.Prefixes))
	for i, p := range m.Prefixes {
		if seen[p] {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("/prefixes/%d", i),
				Message: fmt.Sprintf("duplicate prefix %q", p),
			})
		}
		seen[p] = true
	}

	if m.Recent.Window != "" {
		if _, err := m.Recent.Duration(); err != nil {
			errs = append(errs, ValidationError{Path: "/recent/window", Message: err.Error()})
		}
	}

	if dest := m.Snapshot.Destination; strings.HasPrefix(dest, "s3://") {
		if strings.Trim(strings.TrimPrefix(dest, "s3://"), "/") == "" {
			errs = append(errs, ValidationError{Path: "/snapshot/destination", Message: "s3 destination needs a bucket"})
		}
	}
	if m.Snapshot.Name != "" && len(m.Prefixes) > 1 {
		errs = append(errs, ValidationError{Path: "/snapshot/name", Message: "a fixed name requires exactly one prefix"})
	}

	if _, err := match.New(match.Config{Includes: m.Reconcile.Includes, Excludes: m.Reconcile.Excludes}); err != nil {
		errs = append(errs, ValidationError{Path: "/reconcile", Message: err.Error()})
	}
	if m.Reconcile.Filters != nil {
		if _, err := match.NewFilter(*m.Reconcile.Filters); err != nil {
			errs = append(errs, ValidationError{Path: "/reconcile/filters", Message: err.Error()})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
