package coerce_test

import (
	"encoding/json"
	"testing"

	"github.com/c360studio/semmodel/coerce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestUseCaseParticipantsBecomeActor(t *testing.T) {
	got := coerce.Apply(map[string]any{
		"name":         "Login",
		"participants": []any{"Alice"},
	}, coerce.UseCase)

	assert.Equal(t, "Alice", got["actor"])
	assert.NotContains(t, got, "participants")
	assert.Equal(t, []any{}, got["includes"])
	assert.Equal(t, []any{}, got["extends"])
}

func TestUseCaseDiagramAliases(t *testing.T) {
	in := decode(t, `{
		"participants": [{"name": "Admin", "type": "main"}, "Guest"],
		"useCases": [
			{"actors": [], "include": "Authenticate", "extend": ["Audit"]},
			{"name": "Authenticate", "actor": "Admin"}
		]
	}`)

	got := coerce.Apply(in, coerce.UseCaseDiagram)

	assert.Equal(t, "Use Case Diagram", got["name"])
	assert.Equal(t, "Generated use case diagram", got["description"])
	assert.NotContains(t, got, "participants")
	assert.NotContains(t, got, "useCases")

	actors := got["actors"].([]any)
	require.Len(t, actors, 2)
	assert.Equal(t, map[string]any{"name": "Admin", "kind": "primary"}, actors[0])
	assert.Equal(t, map[string]any{"name": "Guest", "kind": "primary"}, actors[1])

	usecases := got["usecases"].([]any)
	require.Len(t, usecases, 2)
	first := usecases[0].(map[string]any)
	assert.Equal(t, "UseCase 1", first["name"])
	assert.Equal(t, "", first["actor"])
	assert.Equal(t, []any{"Authenticate"}, first["includes"])
	assert.Equal(t, []any{"Audit"}, first["extends"])
	assert.NotContains(t, first, "include")
}

func TestCanonicalKeyWinsOverAlias(t *testing.T) {
	got := coerce.Apply(map[string]any{
		"actor":        "Bob",
		"participants": []any{"Alice"},
	}, coerce.UseCase)
	assert.Equal(t, "Bob", got["actor"])
	assert.NotContains(t, got, "participants")
}

func TestEnvelopeUnwrap(t *testing.T) {
	got := coerce.Apply(decode(t, `{"usecase_diagram": {"name": "Shop", "actors": []}}`), coerce.UseCaseDiagram)
	assert.Equal(t, "Shop", got["name"])
	assert.NotContains(t, got, "usecase_diagram")
}

func TestEnvelopeKeyBesideOwnFieldsIsKept(t *testing.T) {
	got := coerce.Apply(decode(t, `{"status": "fail", "feedback": "wrong domain", "validation": {"coverage": "low"}}`), coerce.ValidationReport)
	assert.Equal(t, "fail", got["status"])
	assert.Equal(t, "wrong domain", got["feedback"])
	assert.Equal(t, map[string]any{"coverage": "low"}, got["validation"])

	got = coerce.Apply(decode(t, `{"verdict": "rejected", "validation_result": {"status": "pass"}}`), coerce.ValidationReport)
	assert.Equal(t, "fail", got["status"], "an alias counts as the shape's own field")

	got = coerce.Apply(decode(t, `{"validation": {"status": "needs improvement", "feedback": "add Fine"}}`), coerce.ValidationReport)
	assert.Equal(t, "needs_improvement", got["status"])
	assert.Equal(t, "add Fine", got["feedback"])
}

func TestScalarReducesNestedLists(t *testing.T) {
	got := coerce.Apply(decode(t, `{"name": [["Borrow"]], "actor": [[["Alice", "Bob"]]], "title": [[]]}`), coerce.UseCase)
	assert.Equal(t, "Borrow", got["name"])
	assert.Equal(t, "Alice", got["actor"])

	got = coerce.Apply(decode(t, `{"actor": [[]]}`), coerce.UseCase)
	assert.Equal(t, "", got["actor"])
}

func TestEnumNormalization(t *testing.T) {
	c := coerce.Apply(map[string]any{"name": "NonNegative", "context": "Account", "type": "inv", "ocl": "self.balance >= 0"}, coerce.Constraint)
	assert.Equal(t, "invariant", c["kind"])
	assert.Equal(t, "self.balance >= 0", c["expression"])

	unknown := coerce.Apply(map[string]any{"kind": "sometimes"}, coerce.Constraint)
	assert.Equal(t, "sometimes", unknown["kind"], "unknown constraint kinds are left for schema construction")

	rel := coerce.Apply(map[string]any{"from": "Order", "to": []any{"Customer"}, "type": "Inheritance", "sourceMultiplicity": 1.0}, coerce.Relationship)
	assert.Equal(t, "Order", rel["source"])
	assert.Equal(t, "Customer", rel["target"])
	assert.Equal(t, "generalization", rel["kind"])
	assert.Equal(t, "1", rel["source_multiplicity"])
}

func TestFlattenParameters(t *testing.T) {
	m := coerce.Apply(decode(t, `{"name": "pay", "params": [{"name": "amount", "type": "Money"}, {"name": "note"}, 3]}`), coerce.Method)
	assert.Equal(t, []any{"amount: Money", "note", "3"}, m["parameters"])
	assert.Equal(t, "public", m["visibility"])
}

func TestValidationReport(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		status   string
		feedback string
	}{
		{name: "score alias", in: `{"score": "needs_improvement", "feedback": "add actors"}`, status: "needs_improvement", feedback: "add actors"},
		{name: "missing status defaults to pass", in: `{"feedback": "fine"}`, status: "pass", feedback: "fine"},
		{name: "synonym", in: `{"status": "Needs Improvement", "suggestions": ["a", "b"]}`, status: "needs_improvement", feedback: "a\nb"},
		{name: "unknown status preserved", in: `{"status": "maybe"}`, status: "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := coerce.Apply(decode(t, tt.in), coerce.ValidationReport)
			assert.Equal(t, tt.status, got["status"])
			assert.Equal(t, tt.feedback, got["feedback"])
			assert.Equal(t, map[string]any{}, got["details"])
		})
	}
}

func TestImprovementLeavesMissingPartsAbsent(t *testing.T) {
	got := coerce.Apply(decode(t, `{"constraints": [{"name": "C", "context": "A", "type": "pre", "expression": "true"}]}`), coerce.Improvement)
	assert.NotContains(t, got, "usecase_diagram")
	assert.NotContains(t, got, "class_diagram")
	require.Contains(t, got, "ocl_constraints")
	assert.Equal(t, "precondition", got["ocl_constraints"].([]any)[0].(map[string]any)["kind"])
}

func TestDomainModelDefaults(t *testing.T) {
	got := coerce.Apply(map[string]any{}, coerce.DomainModel)
	uc := got["usecase_diagram"].(map[string]any)
	assert.Equal(t, "Use Case Diagram", uc["name"])
	assert.Equal(t, []any{}, uc["actors"])
	assert.Equal(t, []any{}, got["sequence_diagrams"])
	assert.Equal(t, map[string]any{}, got["metadata"])
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := decode(t, `{"participants": ["A"], "useCases": [{"participants": ["A"]}]}`)
	snapshot := decode(t, `{"participants": ["A"], "useCases": [{"participants": ["A"]}]}`)

	_ = coerce.Apply(in, coerce.UseCaseDiagram)
	assert.Equal(t, snapshot, in)
}

func TestApplyIsIdempotent(t *testing.T) {
	inputs := []struct {
		shape *coerce.Shape
		in    string
	}{
		{coerce.UseCaseDiagram, `{}`},
		{coerce.UseCaseDiagram, `{"participants": ["A", {"name": "B", "kind": "external"}], "use_cases": [{"participants": [], "include": "X"}, "Bare"]}`},
		{coerce.UseCaseDiagram, `{"usecase_diagram": {"usecase_diagram": {"name": "Deep"}}}`},
		{coerce.ClassDiagram, `{"entities": [{"class_name": "A", "fields": ["id", {"name": "n", "dataType": "int"}], "operations": [{"name": "f", "args": [{"name": "x"}]}]}], "relations": [{"from": "A", "to": "B", "type": "has-a", "targetMultiplicity": 2}]}`},
		{coerce.SequenceDiagram, `{"participants": [{"name": "User"}], "steps": [{"from": "User", "to": "System", "type": "async", "params": [1, true]}]}`},
		{coerce.Constraint, `{"type": "POST", "constraint": ["a", "b"]}`},
		{coerce.ValidationReport, `{"score": ["pass"], "comments": ["x"], "issues": {"a": 1}}`},
		{coerce.Improvement, `{"useCaseDiagram": {}, "classDiagram": {"classes": []}, "sequenceDiagrams": {"name": "one"}, "constraints": []}`},
		{coerce.DomainModel, `{"title": "M", "metadata": null}`},
		{coerce.UseCase, `{"actor": [["Alice"]], "name": [[["Borrow"]]]}`},
		{coerce.UseCaseDiagram, `{"usecases": [{"participants": [[["A"]]]}]}`},
		{coerce.ValidationReport, `{"status": [["fail"]], "validation": {"status": "pass"}}`},
	}

	for _, tt := range inputs {
		t.Run(tt.shape.Name, func(t *testing.T) {
			once := coerce.Apply(decode(t, tt.in), tt.shape)
			twice := coerce.Apply(once, tt.shape)
			assert.Equal(t, once, twice)
		})
	}
}

func TestNilShapeCopies(t *testing.T) {
	in := map[string]any{"a": 1}
	out := coerce.Apply(in, nil)
	out["b"] = 2
	assert.NotContains(t, in, "b")
}
