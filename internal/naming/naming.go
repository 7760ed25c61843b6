// Package naming renders file names from {field} templates.
package naming

import (
	"errors"
	"regexp"
	"strings"
	"sync"
)

// DefaultTemplate names a file after its category and translation.
const DefaultTemplate = "{category_id}_{translated_name}{extension}"

var (
	fieldPattern   = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)
	invalidChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	errEmptyResult = errors.New("naming: template rendered an empty name")
)

// MissingFieldError names the template fields that had no value.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return "naming: missing template fields: " + strings.Join(e.Fields, ", ")
}

// Service is a template NamingService. Parsed field lists are memoized.
type Service struct {
	fields sync.Map // template -> []string
}

// NewService returns a template naming service.
func NewService() *Service {
	return &Service{}
}

// RequiredFields lists the distinct {field} names of template in order.
func (s *Service) RequiredFields(template string) []string {
	if v, ok := s.fields.Load(template); ok {
		return v.([]string)
	}
	var out []string
	seen := make(map[string]struct{})
	for _, m := range fieldPattern.FindAllStringSubmatch(template, -1) {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	s.fields.Store(template, out)
	return out
}

// Render substitutes every field and replaces characters that are not
// allowed in file names. A field without a value is an error.
func (s *Service) Render(template string, fields map[string]string) (string, error) {
	var missing []string
	for _, f := range s.RequiredFields(template) {
		if _, ok := fields[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return "", &MissingFieldError{Fields: missing}
	}
	out := fieldPattern.ReplaceAllStringFunc(template, func(m string) string {
		return fields[m[1:len(m)-1]]
	})
	out = strings.TrimSpace(Sanitize(out))
	if out == "" {
		return "", errEmptyResult
	}
	return out, nil
}

// Validate reports whether template renders when every field is present.
func (s *Service) Validate(template string) error {
	if strings.TrimSpace(template) == "" {
		return errors.New("naming: empty template")
	}
	dummy := make(map[string]string)
	for _, f := range s.RequiredFields(template) {
		dummy[f] = "test_" + f
	}
	_, err := s.Render(template, dummy)
	return err
}

// IsTemplate reports whether text contains at least one {field}.
func IsTemplate(text string) bool {
	return fieldPattern.MatchString(text)
}

// Sanitize replaces characters that Windows or Unix file systems reject.
func Sanitize(name string) string {
	return invalidChars.ReplaceAllString(name, "_")
}
