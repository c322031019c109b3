// Package compiler turns type declarations into executable compiled types.
//
// Compilation checks every declaration-level invariant up front, generates
// the payload schema, and assembles the validator and renderer. A compiled
// type is immutable and safe for concurrent use.
package compiler

import (
	"fmt"
	"slices"

	"github.com/artpar/eventdsl/core/schema"
	"github.com/artpar/eventdsl/core/validation"
)

// CompileError reports a declaration that is well-formed but semantically
// invalid.
type CompileError struct {
	ID     string
	Field  string
	Reason string
}

func (e *CompileError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("compile %s: %s: %s", e.ID, e.Field, e.Reason)
	}
	return fmt.Sprintf("compile %s: %s", e.ID, e.Reason)
}

// DataModel is the ordered set of compiled types produced from one batch of
// declarations.
type DataModel struct {
	types []*CompiledType
	byID  map[string]*CompiledType
}

// NewDataModel assembles a model from already compiled types. Types with a
// repeated id after the first are ignored.
func NewDataModel(types ...*CompiledType) *DataModel {
	m := &DataModel{byID: make(map[string]*CompiledType, len(types))}
	for _, ct := range types {
		if _, dup := m.byID[ct.ID]; dup {
			continue
		}
		m.byID[ct.ID] = ct
		m.types = append(m.types, ct)
	}
	return m
}

// Get returns the compiled type with the given id.
func (m *DataModel) Get(id string) (*CompiledType, bool) {
	ct, ok := m.byID[id]
	return ct, ok
}

// IDs returns the type ids in input order.
func (m *DataModel) IDs() []string {
	ids := make([]string, len(m.types))
	for i, ct := range m.types {
		ids[i] = ct.ID
	}
	return ids
}

// Types returns the compiled types in input order.
func (m *DataModel) Types() []*CompiledType {
	out := make([]*CompiledType, len(m.types))
	copy(out, m.types)
	return out
}

// Len returns the number of compiled types.
func (m *DataModel) Len() int {
	return len(m.types)
}

// Compile compiles decls as one batch. The first failing declaration aborts
// the batch: the model is nil and the error is a *CompileError.
func Compile(decls []schema.TypeDeclaration) (*DataModel, error) {
	seen := make(map[string]bool, len(decls))
	types := make([]*CompiledType, 0, len(decls))

	for _, d := range decls {
		if seen[d.ID] && d.ID != "" {
			return nil, &CompileError{ID: d.ID, Reason: "duplicate type id"}
		}
		seen[d.ID] = true

		ct, err := CompileType(d)
		if err != nil {
			return nil, err
		}
		types = append(types, ct)
	}
	return NewDataModel(types...), nil
}

// CompileEach compiles every declaration independently. Failing
// declarations are left out of the model and reported in input order. For
// a repeated id only the first declaration is compiled, even when it fails;
// every later one is reported as a duplicate.
func CompileEach(decls []schema.TypeDeclaration) (*DataModel, []error) {
	seen := make(map[string]bool, len(decls))
	types := make([]*CompiledType, 0, len(decls))
	var errs []error

	for _, d := range decls {
		if seen[d.ID] && d.ID != "" {
			errs = append(errs, &CompileError{ID: d.ID, Reason: "duplicate type id"})
			continue
		}
		seen[d.ID] = true

		ct, err := CompileType(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		types = append(types, ct)
	}
	return NewDataModel(types...), errs
}

// CompileType compiles a single declaration.
func CompileType(d schema.TypeDeclaration) (*CompiledType, error) {
	d.Fields = slices.Clone(d.Fields)
	d.Rules = slices.Clone(d.Rules)
	d.Display = slices.Clone(d.Display)
	d.Behavior = slices.Clone(d.Behavior)

	if err := check(d); err != nil {
		return nil, err
	}

	display, err := compileDisplay(d)
	if err != nil {
		return nil, err
	}

	s := schema.GenerateSchema(d.Fields)

	name := d.Name
	if name == "" {
		name = d.ID
	}

	ct := &CompiledType{
		ID:          d.ID,
		Name:        name,
		Description: d.Description,
		Schema:      s,
		decl:        d,
		evaluator:   newEvaluator(d.Fields),
		rules:       compileRules(d.Rules),
		display:     display,
		shape:       validation.New(s),
		behavior:    make(map[string]any, len(d.Behavior)),
	}
	for _, b := range d.Behavior {
		ct.behavior[b.Key] = b.Value
	}
	return ct, nil
}
