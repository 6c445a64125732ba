// Package compiler turns CUE entity-model definitions into the
// metadata graph the expansion pass consumes.
//
// Models are written as a CUE struct with an entities map:
//
//	entities: {
//		Order: {
//			table: "orders"
//			key: ["Id"]
//			properties: {
//				Id:         "int"
//				CustomerId: "int"
//			}
//			navigations: {
//				Customer: {target: "Customer", foreignKey: ["CustomerId"], dependent: true}
//			}
//		}
//	}
//
// Properties accept a shorthand type string ("int", "string?") or a
// full struct with column and nullable fields.
package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/kestrel-orm/kestrel/internal/model"
)

// CompileModel parses a CUE value into a model.Model.
// Uses the CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the struct holding the entities map:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entities: { ... }`)
//	m, err := compiler.CompileModel(v)
func CompileModel(v cue.Value) (*model.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := v.LookupPath(cue.ParsePath("entities"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{
			Field:   "entities",
			Message: "entities map is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var entities []*model.EntityType
	for iter.Next() {
		ent, err := parseEntity(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		entities = append(entities, ent)
	}
	if len(entities) == 0 {
		return nil, &CompileError{
			Field:   "entities",
			Message: "at least one entity is required",
			Pos:     entitiesVal.Pos(),
		}
	}

	return model.NewModel(entities...), nil
}

func parseEntity(name string, v cue.Value) (*model.EntityType, error) {
	ent := &model.EntityType{Name: name}

	// Table defaults to the lowercased entity name.
	tableVal := v.LookupPath(cue.ParsePath("table"))
	if tableVal.Exists() {
		table, err := tableVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ent.Table = table
	} else {
		ent.Table = strings.ToLower(name)
	}

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("entities.%s.properties", name),
			Message: "properties map is required",
			Pos:     v.Pos(),
		}
	}
	propIter, err := propsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for propIter.Next() {
		p, err := parseProperty(name, propIter.Label(), propIter.Value())
		if err != nil {
			return nil, err
		}
		ent.Properties = append(ent.Properties, p)
	}

	keyVal := v.LookupPath(cue.ParsePath("key"))
	if !keyVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("entities.%s.key", name),
			Message: "key is required",
			Pos:     v.Pos(),
		}
	}
	keyIter, err := keyVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for keyIter.Next() {
		k, err := keyIter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ent.Key = append(ent.Key, k)
	}

	navsVal := v.LookupPath(cue.ParsePath("navigations"))
	if navsVal.Exists() {
		navIter, err := navsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for navIter.Next() {
			nav, err := parseNavigation(name, navIter.Label(), navIter.Value())
			if err != nil {
				return nil, err
			}
			ent.Navigations = append(ent.Navigations, nav)
		}
	}

	return ent, nil
}

// parseProperty accepts the shorthand type string ("int", "string?")
// or a struct with type, column and nullable fields.
func parseProperty(entity, name string, v cue.Value) (*model.Property, error) {
	p := &model.Property{Name: name, Column: snakeCase(name)}

	if s, err := v.String(); err == nil {
		p.Type = strings.TrimSuffix(s, "?")
		p.Nullable = strings.HasSuffix(s, "?")
		return p, validatePropertyType(entity, name, p.Type, v.Pos())
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("entities.%s.properties.%s", entity, name),
			Message: "property must be a type string or a struct with a type field",
			Pos:     v.Pos(),
		}
	}
	typ, err := typeVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	p.Type = strings.TrimSuffix(typ, "?")
	p.Nullable = strings.HasSuffix(typ, "?")

	if colVal := v.LookupPath(cue.ParsePath("column")); colVal.Exists() {
		col, err := colVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		p.Column = col
	}
	if nullVal := v.LookupPath(cue.ParsePath("nullable")); nullVal.Exists() {
		nullable, err := nullVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		p.Nullable = p.Nullable || nullable
	}

	return p, validatePropertyType(entity, name, p.Type, v.Pos())
}

func validatePropertyType(entity, name, typ string, pos token.Pos) error {
	switch typ {
	case "int", "string", "bool", "float":
		return nil
	}
	return &CompileError{
		Field:   fmt.Sprintf("entities.%s.properties.%s", entity, name),
		Message: fmt.Sprintf("unsupported property type %q", typ),
		Pos:     pos,
	}
}

func parseNavigation(entity, name string, v cue.Value) (*model.Navigation, error) {
	nav := &model.Navigation{Name: name}

	targetVal := v.LookupPath(cue.ParsePath("target"))
	if !targetVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("entities.%s.navigations.%s", entity, name),
			Message: "navigation target is required",
			Pos:     v.Pos(),
		}
	}
	target, err := targetVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	nav.Target = target

	fkVal := v.LookupPath(cue.ParsePath("foreignKey"))
	if !fkVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("entities.%s.navigations.%s", entity, name),
			Message: "navigation foreignKey is required",
			Pos:     v.Pos(),
		}
	}
	fkIter, err := fkVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for fkIter.Next() {
		fk, err := fkIter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		nav.ForeignKey = append(nav.ForeignKey, fk)
	}

	if pkVal := v.LookupPath(cue.ParsePath("principalKey")); pkVal.Exists() {
		pkIter, err := pkVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for pkIter.Next() {
			pk, err := pkIter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			nav.PrincipalKey = append(nav.PrincipalKey, pk)
		}
	}

	flag := func(path string) (bool, error) {
		fv := v.LookupPath(cue.ParsePath(path))
		if !fv.Exists() {
			return false, nil
		}
		b, err := fv.Bool()
		if err != nil {
			return false, formatCUEError(err)
		}
		return b, nil
	}
	if nav.DependentToPrincipal, err = flag("dependent"); err != nil {
		return nil, err
	}
	if nav.Optional, err = flag("optional"); err != nil {
		return nil, err
	}
	if nav.Collection, err = flag("collection"); err != nil {
		return nil, err
	}
	if nav.Collection && nav.DependentToPrincipal {
		return nil, &CompileError{
			Field:   fmt.Sprintf("entities.%s.navigations.%s", entity, name),
			Message: "collection navigations are declared on the principal side",
			Pos:     v.Pos(),
		}
	}

	return nav, nil
}

// snakeCase converts a property name to its default column name,
// e.g. CustomerId -> customer_id.
func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
