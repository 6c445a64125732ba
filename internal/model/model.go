// Package model defines the entity metadata consumed by the
// navigation-expansion pass: which entity types exist, their keys,
// foreign keys, and navigation properties.
//
// The model is read-only during query compilation. It is typically
// produced by the CUE compiler in internal/compiler, but can also be
// constructed directly in code (tests do this).
package model

import "fmt"

// Model is the root of the entity metadata graph.
type Model struct {
	Entities []*EntityType `json:"entities"`

	byName map[string]*EntityType
}

// EntityType describes one mapped entity.
type EntityType struct {
	Name        string        `json:"name"`
	Table       string        `json:"table"`
	Properties  []*Property   `json:"properties"`
	Key         []string      `json:"key"` // property names, in key order
	Navigations []*Navigation `json:"navigations,omitempty"`
}

// Property is a scalar member of an entity type mapped to a column.
type Property struct {
	Name     string `json:"name"`
	Column   string `json:"column"`
	Type     string `json:"type"` // "int", "string", "bool", "float"
	Nullable bool   `json:"nullable,omitempty"`
}

// Navigation is a relationship-valued member of an entity type.
//
// ForeignKey names the dependent-side properties and PrincipalKey the
// principal-side properties they reference, positionally aligned.
// DependentToPrincipal reports which side this navigation is declared
// on: true means the declaring entity holds the foreign key (e.g.
// Order.Customer), false means the declaring entity is the principal
// (e.g. Customer.Orders).
type Navigation struct {
	Name                 string   `json:"name"`
	Target               string   `json:"target"`
	ForeignKey           []string `json:"foreign_key"`
	PrincipalKey         []string `json:"principal_key,omitempty"` // defaults to target's Key
	DependentToPrincipal bool     `json:"dependent_to_principal"`
	Optional             bool     `json:"optional,omitempty"`
	Collection           bool     `json:"collection,omitempty"`
}

// NewModel builds a Model from entity types and indexes them by name.
func NewModel(entities ...*EntityType) *Model {
	m := &Model{Entities: entities, byName: make(map[string]*EntityType, len(entities))}
	for _, e := range entities {
		m.byName[e.Name] = e
	}
	return m
}

// Entity returns the entity type with the given name, or nil.
func (m *Model) Entity(name string) *EntityType {
	if m.byName == nil {
		m.byName = make(map[string]*EntityType, len(m.Entities))
		for _, e := range m.Entities {
			m.byName[e.Name] = e
		}
	}
	return m.byName[name]
}

// Property returns the property with the given name, or nil.
func (e *EntityType) Property(name string) *Property {
	for _, p := range e.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Navigation returns the navigation with the given name, or nil.
func (e *EntityType) Navigation(name string) *Navigation {
	for _, n := range e.Navigations {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// KeyProperties resolves the entity's key property names to properties.
func (e *EntityType) KeyProperties() []*Property {
	props := make([]*Property, 0, len(e.Key))
	for _, name := range e.Key {
		if p := e.Property(name); p != nil {
			props = append(props, p)
		}
	}
	return props
}

// PrincipalEntity returns the entity holding the principal key of a
// navigation declared on declaring.
func (m *Model) PrincipalEntity(nav *Navigation, declaring *EntityType) *EntityType {
	if nav.DependentToPrincipal {
		return m.Entity(nav.Target)
	}
	return declaring
}

// DependentEntity returns the entity holding the foreign key of a
// navigation declared on declaring.
func (m *Model) DependentEntity(nav *Navigation, declaring *EntityType) *EntityType {
	if nav.DependentToPrincipal {
		return declaring
	}
	return m.Entity(nav.Target)
}

// PrincipalKeyFor resolves the principal-side key property names of a
// navigation declared on declaring. Falls back to the principal
// entity's primary key when the navigation does not name a candidate
// key explicitly.
func (m *Model) PrincipalKeyFor(nav *Navigation, declaring *EntityType) ([]string, error) {
	principal := m.PrincipalEntity(nav, declaring)
	if principal == nil {
		return nil, fmt.Errorf("navigation %s: unknown target entity %q", nav.Name, nav.Target)
	}
	if len(nav.PrincipalKey) > 0 {
		return nav.PrincipalKey, nil
	}
	return principal.Key, nil
}

// Validate checks referential consistency of the model: navigation
// targets exist, foreign-key property lists align with principal keys,
// and foreign-key nullability agrees with the Optional flag.
func (m *Model) Validate() error {
	for _, e := range m.Entities {
		if len(e.Key) == 0 {
			return fmt.Errorf("entity %s: missing key", e.Name)
		}
		for _, name := range e.Key {
			if e.Property(name) == nil {
				return fmt.Errorf("entity %s: key property %q not declared", e.Name, name)
			}
		}
		for _, nav := range e.Navigations {
			if err := m.validateNavigation(e, nav); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Model) validateNavigation(e *EntityType, nav *Navigation) error {
	target := m.Entity(nav.Target)
	if target == nil {
		return fmt.Errorf("entity %s: navigation %s targets unknown entity %q", e.Name, nav.Name, nav.Target)
	}

	principal, err := m.PrincipalKeyFor(nav, e)
	if err != nil {
		return fmt.Errorf("entity %s: %w", e.Name, err)
	}
	if len(nav.ForeignKey) != len(principal) {
		return fmt.Errorf("entity %s: navigation %s has %d foreign-key properties against %d principal-key properties",
			e.Name, nav.Name, len(nav.ForeignKey), len(principal))
	}

	// The foreign key lives on the dependent side.
	dependent := e
	if !nav.DependentToPrincipal {
		dependent = target
	}
	for _, name := range nav.ForeignKey {
		p := dependent.Property(name)
		if p == nil {
			return fmt.Errorf("entity %s: navigation %s references undeclared foreign-key property %s.%s",
				e.Name, nav.Name, dependent.Name, name)
		}
		if nav.DependentToPrincipal && nav.Optional && !p.Nullable {
			return fmt.Errorf("entity %s: navigation %s is optional but foreign-key property %s is non-nullable",
				e.Name, nav.Name, name)
		}
	}
	return nil
}
