// Package validation checks the internal consistency of a domain model:
// name uniqueness and cross-references between actors, use cases and classes.
//
// Findings are data, not failures. Errors block acceptance of a candidate,
// warnings do not. All checks are deterministic and report in declaration order.
package validation

import (
	"fmt"
	"strings"

	"github.com/c360studio/semmodel/dsl"
)

// Code identifies the kind of an Issue.
type Code string

const (
	CodeDuplicateActor    Code = "duplicate_actor"
	CodeDuplicateUseCase  Code = "duplicate_usecase"
	CodeUnknownActor      Code = "unknown_actor"
	CodeUnknownInclude    Code = "unknown_include"
	CodeUnknownExtend     Code = "unknown_extend"
	CodeEmptyActor        Code = "empty_actor"
	CodeDuplicateClass    Code = "duplicate_class"
	CodeUnknownSource     Code = "unknown_relationship_source"
	CodeUnknownTarget     Code = "unknown_relationship_target"
	CodeUnknownContext    Code = "unknown_constraint_context"
	CodeUnknownSeqUseCase Code = "unknown_sequence_usecase"
)

// Issue is a single finding about a model element.
type Issue struct {
	Code Code `json:"code"`
	// Subject is the element the issue is about.
	Subject string `json:"subject"`
	// Ref is the dangling or duplicated reference, if any.
	Ref     string `json:"ref,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Message
}

// Report is the result of a consistency check.
type Report struct {
	IsValid      bool    `json:"is_valid"`
	Errors       []Issue `json:"errors"`
	Warnings     []Issue `json:"warnings"`
	UseCaseCount int     `json:"usecase_count"`
	ActorCount   int     `json:"actor_count"`
	ClassCount   int     `json:"class_count"`
}

func newReport() *Report {
	return &Report{IsValid: true, Errors: []Issue{}, Warnings: []Issue{}}
}

func (r *Report) errorf(code Code, subject, ref, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Code: code, Subject: subject, Ref: ref, Message: fmt.Sprintf(format, args...)})
	r.IsValid = false
}

func (r *Report) warnf(code Code, subject, ref, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Code: code, Subject: subject, Ref: ref, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) merge(other *Report) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.IsValid = r.IsValid && other.IsValid
}

// ValidateUseCaseDiagram checks actor and use case uniqueness and the
// actor/includes/extends references of every use case.
func ValidateUseCaseDiagram(d dsl.UseCaseDiagram) *Report {
	r := newReport()
	r.ActorCount = len(d.Actors)
	r.UseCaseCount = len(d.UseCases)

	actors := make(map[string]bool, len(d.Actors))
	reported := make(map[string]bool)
	for _, a := range d.Actors {
		if actors[a.Name] {
			if !reported[a.Name] {
				r.errorf(CodeDuplicateActor, a.Name, a.Name, "duplicate actor name %q", a.Name)
				reported[a.Name] = true
			}
			continue
		}
		actors[a.Name] = true
	}

	usecases := make(map[string]bool, len(d.UseCases))
	for _, uc := range d.UseCases {
		usecases[uc.Name] = true
	}

	seen := make(map[string]bool, len(d.UseCases))
	reported = make(map[string]bool)
	for _, uc := range d.UseCases {
		if seen[uc.Name] && !reported[uc.Name] {
			r.errorf(CodeDuplicateUseCase, uc.Name, uc.Name, "duplicate use case name %q", uc.Name)
			reported[uc.Name] = true
		}
		seen[uc.Name] = true

		switch {
		case strings.TrimSpace(uc.Actor) == "":
			r.warnf(CodeEmptyActor, uc.Name, "", "use case %q has no actor", uc.Name)
		case !actors[uc.Actor]:
			r.errorf(CodeUnknownActor, uc.Name, uc.Actor, "use case %q references unknown actor %q", uc.Name, uc.Actor)
		}
		for _, inc := range uc.Includes {
			if !usecases[inc] {
				r.errorf(CodeUnknownInclude, uc.Name, inc, "use case %q includes unknown use case %q", uc.Name, inc)
			}
		}
		for _, ext := range uc.Extends {
			if !usecases[ext] {
				r.errorf(CodeUnknownExtend, uc.Name, ext, "use case %q extends unknown use case %q", uc.Name, ext)
			}
		}
	}
	return r
}

// ValidateClassDiagram checks class uniqueness and relationship endpoints.
func ValidateClassDiagram(d dsl.ClassDiagram) *Report {
	r := newReport()
	r.ClassCount = len(d.Classes)

	classes := make(map[string]bool, len(d.Classes))
	reported := make(map[string]bool)
	for _, c := range d.Classes {
		if classes[c.Name] {
			if !reported[c.Name] {
				r.errorf(CodeDuplicateClass, c.Name, c.Name, "duplicate class name %q", c.Name)
				reported[c.Name] = true
			}
			continue
		}
		classes[c.Name] = true
	}

	for _, rel := range d.Relationships {
		subject := relationshipLabel(rel)
		if !classes[rel.Source] {
			r.errorf(CodeUnknownSource, subject, rel.Source, "relationship %s references unknown source class %q", subject, rel.Source)
		}
		if !classes[rel.Target] {
			r.errorf(CodeUnknownTarget, subject, rel.Target, "relationship %s references unknown target class %q", subject, rel.Target)
		}
	}
	return r
}

// ValidateModel runs every check over a complete model. Constraint contexts
// and sequence diagram use cases that resolve to nothing are warnings.
func ValidateModel(m *dsl.DomainModel) *Report {
	r := ValidateUseCaseDiagram(m.UseCaseDiagram)
	cr := ValidateClassDiagram(m.ClassDiagram)
	r.merge(cr)
	r.ClassCount = cr.ClassCount

	known := make(map[string]bool)
	for _, c := range m.ClassDiagram.Classes {
		known[c.Name] = true
	}
	for _, uc := range m.UseCaseDiagram.UseCases {
		known[uc.Name] = true
	}

	for _, c := range m.Constraints {
		if !known[contextRoot(c.Context)] {
			r.warnf(CodeUnknownContext, c.Name, c.Context, "constraint %q has unknown context %q", c.Name, c.Context)
		}
	}
	for _, sd := range m.SequenceDiagrams {
		if sd.UseCase == "" {
			continue
		}
		if _, ok := m.UseCaseDiagram.FindUseCase(sd.UseCase); !ok {
			r.warnf(CodeUnknownSeqUseCase, sd.Name, sd.UseCase, "sequence diagram %q details unknown use case %q", sd.Name, sd.UseCase)
		}
	}
	return r
}

// ErrorMessages returns the error messages in report order.
func (r *Report) ErrorMessages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Message)
	}
	return out
}

// FormatFeedback renders the findings as feedback for a revision prompt.
func (r *Report) FormatFeedback() string {
	if r.IsValid && len(r.Warnings) == 0 {
		return ""
	}

	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Consistency errors:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "- %s\n", e.Message)
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Consistency warnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w.Message)
		}
	}
	return sb.String()
}

// contextRoot strips member qualifiers: "Account::withdraw" → "Account".
func contextRoot(ctx string) string {
	ctx = strings.TrimSpace(ctx)
	if i := strings.Index(ctx, "::"); i >= 0 {
		ctx = ctx[:i]
	}
	if i := strings.Index(ctx, "."); i >= 0 {
		ctx = ctx[:i]
	}
	return ctx
}

func relationshipLabel(rel dsl.Relationship) string {
	if rel.Name != "" {
		return fmt.Sprintf("%q", rel.Name)
	}
	return fmt.Sprintf("%s->%s", rel.Source, rel.Target)
}
