package dsl

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FieldProblem is a single schema violation at a JSON path.
type FieldProblem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SchemaValidationError reports coerced JSON that does not satisfy a schema's
// required-field or type constraints.
type SchemaValidationError struct {
	Schema   string
	Problems []FieldProblem
}

func (e *SchemaValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Path+": "+p.Message)
	}
	return fmt.Sprintf("%s schema validation failed: %s", e.Schema, strings.Join(parts, "; "))
}

// IsSchemaValidation reports whether err is or wraps a SchemaValidationError.
func IsSchemaValidation(err error) bool {
	var se *SchemaValidationError
	return errors.As(err, &se)
}

// Schema names used in errors.
const (
	SchemaUseCaseDiagram  = "usecase_diagram"
	SchemaClassDiagram    = "class_diagram"
	SchemaSequenceDiagram = "sequence_diagram"
	SchemaConstraint      = "ocl_constraint"
	SchemaDomainModel     = "domain_model"
)

// BuildUseCaseDiagram constructs a UseCaseDiagram from a coerced object.
// obj may be a decoded JSON value (map[string]any), raw JSON bytes or a string.
func BuildUseCaseDiagram(obj any) (UseCaseDiagram, error) {
	var d UseCaseDiagram
	if err := decode(SchemaUseCaseDiagram, obj, &d); err != nil {
		return UseCaseDiagram{}, err
	}
	c := &checker{}
	d.check(c, "")
	if err := c.err(SchemaUseCaseDiagram); err != nil {
		return UseCaseDiagram{}, err
	}
	return d, nil
}

// BuildClassDiagram constructs a ClassDiagram from a coerced object.
func BuildClassDiagram(obj any) (ClassDiagram, error) {
	var d ClassDiagram
	if err := decode(SchemaClassDiagram, obj, &d); err != nil {
		return ClassDiagram{}, err
	}
	c := &checker{}
	d.check(c, "")
	if err := c.err(SchemaClassDiagram); err != nil {
		return ClassDiagram{}, err
	}
	return d, nil
}

// BuildSequenceDiagram constructs a SequenceDiagram from a coerced object.
func BuildSequenceDiagram(obj any) (SequenceDiagram, error) {
	var d SequenceDiagram
	if err := decode(SchemaSequenceDiagram, obj, &d); err != nil {
		return SequenceDiagram{}, err
	}
	c := &checker{}
	d.check(c, "")
	if err := c.err(SchemaSequenceDiagram); err != nil {
		return SequenceDiagram{}, err
	}
	return d, nil
}

// BuildConstraint constructs a Constraint from a coerced object.
func BuildConstraint(obj any) (Constraint, error) {
	var oc Constraint
	if err := decode(SchemaConstraint, obj, &oc); err != nil {
		return Constraint{}, err
	}
	c := &checker{}
	oc.check(c, "")
	if err := c.err(SchemaConstraint); err != nil {
		return Constraint{}, err
	}
	return oc, nil
}

// BuildDomainModel constructs a complete DomainModel, checking every part.
func BuildDomainModel(obj any) (*DomainModel, error) {
	var m DomainModel
	if err := decode(SchemaDomainModel, obj, &m); err != nil {
		return nil, err
	}
	c := &checker{}
	c.require("name", m.Name)
	m.UseCaseDiagram.check(c, "usecase_diagram.")
	m.ClassDiagram.check(c, "class_diagram.")
	if m.SequenceDiagrams == nil {
		m.SequenceDiagrams = []SequenceDiagram{}
	}
	for i := range m.SequenceDiagrams {
		m.SequenceDiagrams[i].check(c, fmt.Sprintf("sequence_diagrams[%d].", i))
	}
	if m.Constraints == nil {
		m.Constraints = []Constraint{}
	}
	for i := range m.Constraints {
		m.Constraints[i].check(c, fmt.Sprintf("ocl_constraints[%d].", i))
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	if err := c.err(SchemaDomainModel); err != nil {
		return nil, err
	}
	return &m, nil
}

func decode(schema string, obj any, v any) error {
	var data []byte
	switch o := obj.(type) {
	case nil:
		return &SchemaValidationError{Schema: schema, Problems: []FieldProblem{{Path: "$", Message: "value is null"}}}
	case []byte:
		data = o
	case json.RawMessage:
		data = o
	case string:
		data = []byte(o)
	default:
		b, err := json.Marshal(obj)
		if err != nil {
			return &SchemaValidationError{Schema: schema, Problems: []FieldProblem{{Path: "$", Message: err.Error()}}}
		}
		data = b
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &SchemaValidationError{Schema: schema, Problems: []FieldProblem{decodeProblem(err)}}
	}
	return nil
}

func decodeProblem(err error) FieldProblem {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		path := typeErr.Field
		if path == "" {
			path = "$"
		}
		return FieldProblem{Path: path, Message: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)}
	}
	return FieldProblem{Path: "$", Message: err.Error()}
}

type checker struct {
	problems []FieldProblem
}

func (c *checker) add(path, format string, args ...any) {
	c.problems = append(c.problems, FieldProblem{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) require(path, value string) {
	if strings.TrimSpace(value) == "" {
		c.add(path, "required")
	}
}

func (c *checker) err(schema string) error {
	if len(c.problems) == 0 {
		return nil
	}
	return &SchemaValidationError{Schema: schema, Problems: c.problems}
}

func (d *UseCaseDiagram) check(c *checker, prefix string) {
	c.require(prefix+"name", d.Name)
	if d.Actors == nil {
		d.Actors = []Actor{}
	}
	if d.UseCases == nil {
		d.UseCases = []UseCase{}
	}
	for i, a := range d.Actors {
		p := fmt.Sprintf("%sactors[%d].", prefix, i)
		c.require(p+"name", a.Name)
		if !a.Kind.Valid() {
			c.add(p+"kind", "unknown actor kind %q", a.Kind)
		}
	}
	for i := range d.UseCases {
		uc := &d.UseCases[i]
		c.require(fmt.Sprintf("%susecases[%d].name", prefix, i), uc.Name)
		uc.Includes = nonNil(uc.Includes)
		uc.Extends = nonNil(uc.Extends)
		uc.Preconditions = nonNil(uc.Preconditions)
		uc.Postconditions = nonNil(uc.Postconditions)
	}
}

func (d *ClassDiagram) check(c *checker, prefix string) {
	c.require(prefix+"name", d.Name)
	if d.Classes == nil {
		d.Classes = []Class{}
	}
	if d.Relationships == nil {
		d.Relationships = []Relationship{}
	}
	for i := range d.Classes {
		cl := &d.Classes[i]
		p := fmt.Sprintf("%sclasses[%d].", prefix, i)
		c.require(p+"name", cl.Name)
		if cl.Attributes == nil {
			cl.Attributes = []Attribute{}
		}
		if cl.Methods == nil {
			cl.Methods = []Method{}
		}
		cl.Stereotypes = nonNil(cl.Stereotypes)
		for j, a := range cl.Attributes {
			c.require(fmt.Sprintf("%sattributes[%d].name", p, j), a.Name)
		}
		for j := range cl.Methods {
			c.require(fmt.Sprintf("%smethods[%d].name", p, j), cl.Methods[j].Name)
			cl.Methods[j].Parameters = nonNil(cl.Methods[j].Parameters)
		}
	}
	for i, r := range d.Relationships {
		p := fmt.Sprintf("%srelationships[%d].", prefix, i)
		c.require(p+"source", r.Source)
		c.require(p+"target", r.Target)
		if !r.Kind.Valid() {
			c.add(p+"kind", "unknown relationship kind %q", r.Kind)
		}
	}
}

func (d *SequenceDiagram) check(c *checker, prefix string) {
	c.require(prefix+"name", d.Name)
	d.Actors = nonNil(d.Actors)
	d.Systems = nonNil(d.Systems)
	if d.Messages == nil {
		d.Messages = []Message{}
	}
	for i := range d.Messages {
		m := &d.Messages[i]
		p := fmt.Sprintf("%smessages[%d].", prefix, i)
		c.require(p+"sender", m.Sender)
		c.require(p+"receiver", m.Receiver)
		if !m.Kind.Valid() {
			c.add(p+"kind", "unknown message kind %q", m.Kind)
		}
		m.Parameters = nonNil(m.Parameters)
	}
}

func (oc *Constraint) check(c *checker, prefix string) {
	c.require(prefix+"name", oc.Name)
	c.require(prefix+"context", oc.Context)
	c.require(prefix+"expression", oc.Expression)
	if !oc.Kind.Valid() {
		c.add(prefix+"kind", "unknown constraint kind %q", oc.Kind)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
