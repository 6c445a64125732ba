package compiler

import (
	"fmt"

	"github.com/kestrel-orm/kestrel/internal/model"
)

// Validation error codes (E200-E299)
const (
	ErrEntityNoKey          = "E200" // entity has no key
	ErrKeyNotDeclared       = "E201" // key property not declared
	ErrDuplicateEntity      = "E202" // duplicate entity name
	ErrDuplicateMember      = "E203" // duplicate property/navigation name
	ErrNavUnknownTarget     = "E210" // navigation targets unknown entity
	ErrNavKeyArity          = "E211" // foreign-key/principal-key arity mismatch
	ErrNavForeignKeyMissing = "E212" // foreign-key property not declared
	ErrNavOptionalNotNull   = "E213" // optional navigation over non-nullable foreign key
)

// ValidationError represents a model validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled model against schema rules.
// Returns all errors found (does not fail fast).
func Validate(m *model.Model) []ValidationError {
	var errs []ValidationError

	entityNames := make(map[string]bool)
	for _, e := range m.Entities {
		if entityNames[e.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("entities.%s", e.Name),
				Message: fmt.Sprintf("duplicate entity name: %q", e.Name),
				Code:    ErrDuplicateEntity,
			})
		}
		entityNames[e.Name] = true
		errs = append(errs, validateEntity(m, e)...)
	}

	return errs
}

func validateEntity(m *model.Model, e *model.EntityType) []ValidationError {
	var errs []ValidationError

	if len(e.Key) == 0 {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("entities.%s.key", e.Name),
			Message: "entity must declare a key",
			Code:    ErrEntityNoKey,
		})
	}
	for _, k := range e.Key {
		if e.Property(k) == nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("entities.%s.key", e.Name),
				Message: fmt.Sprintf("key property %q is not declared", k),
				Code:    ErrKeyNotDeclared,
			})
		}
	}

	members := make(map[string]bool)
	for _, p := range e.Properties {
		if members[p.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("entities.%s.properties.%s", e.Name, p.Name),
				Message: fmt.Sprintf("duplicate member name: %q", p.Name),
				Code:    ErrDuplicateMember,
			})
		}
		members[p.Name] = true
	}

	for _, nav := range e.Navigations {
		if members[nav.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("entities.%s.navigations.%s", e.Name, nav.Name),
				Message: fmt.Sprintf("duplicate member name: %q", nav.Name),
				Code:    ErrDuplicateMember,
			})
		}
		members[nav.Name] = true
		errs = append(errs, validateNavigation(m, e, nav)...)
	}

	return errs
}

func validateNavigation(m *model.Model, e *model.EntityType, nav *model.Navigation) []ValidationError {
	field := fmt.Sprintf("entities.%s.navigations.%s", e.Name, nav.Name)

	target := m.Entity(nav.Target)
	if target == nil {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("navigation targets unknown entity %q", nav.Target),
			Code:    ErrNavUnknownTarget,
		}}
	}

	var errs []ValidationError

	principal, err := m.PrincipalKeyFor(nav, e)
	if err == nil && len(nav.ForeignKey) != len(principal) {
		errs = append(errs, ValidationError{
			Field: field,
			Message: fmt.Sprintf("%d foreign-key properties against %d principal-key properties",
				len(nav.ForeignKey), len(principal)),
			Code: ErrNavKeyArity,
		})
	}

	dependent := m.DependentEntity(nav, e)
	for _, name := range nav.ForeignKey {
		p := dependent.Property(name)
		if p == nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("foreign-key property %s.%s is not declared", dependent.Name, name),
				Code:    ErrNavForeignKeyMissing,
			})
			continue
		}
		if nav.DependentToPrincipal && nav.Optional && !p.Nullable {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("navigation is optional but foreign-key property %q is non-nullable", name),
				Code:    ErrNavOptionalNotNull,
			})
		}
	}

	return errs
}
