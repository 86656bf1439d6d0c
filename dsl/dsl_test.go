package dsl_test

import (
	"path/filepath"
	"testing"

	"github.com/c360studio/semmodel/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleModel() *dsl.DomainModel {
	return &dsl.DomainModel{
		Name:        "Library",
		Description: "Book lending",
		UseCaseDiagram: dsl.UseCaseDiagram{
			Name:        "Lending",
			Description: "Lending use cases",
			Actors: []dsl.Actor{
				{Name: "Member", Kind: dsl.ActorPrimary},
				{Name: "Catalog", Description: "external catalog", Kind: dsl.ActorSecondary},
			},
			UseCases: []dsl.UseCase{
				{
					Name:           "Borrow Book",
					Actor:          "Member",
					Includes:       []string{"Check Availability"},
					Extends:        []string{},
					Preconditions:  []string{"member is registered"},
					Postconditions: []string{"loan recorded"},
				},
				{
					Name:           "Check Availability",
					Actor:          "Catalog",
					Includes:       []string{},
					Extends:        []string{},
					Preconditions:  []string{},
					Postconditions: []string{},
				},
			},
		},
		SequenceDiagrams: []dsl.SequenceDiagram{
			{
				Name:    "Borrow Book Flow",
				UseCase: "Borrow Book",
				Actors:  []string{"Member"},
				Systems: []string{"Library"},
				Messages: []dsl.Message{
					{Name: "borrow", Sender: "Member", Receiver: "Library", Kind: dsl.MessageSynchronous, Parameters: []string{"isbn"}, ReturnValue: "loanId"},
				},
			},
		},
		ClassDiagram: dsl.ClassDiagram{
			Name: "Domain",
			Classes: []dsl.Class{
				{
					Name:        "Book",
					Attributes:  []dsl.Attribute{{Name: "isbn", Type: "string", Visibility: "private", Multiplicity: "1"}},
					Methods:     []dsl.Method{{Name: "lend", Parameters: []string{"member"}, ReturnType: "Loan", Visibility: "public"}},
					Stereotypes: []string{"entity"},
				},
				{Name: "Loan", Attributes: []dsl.Attribute{}, Methods: []dsl.Method{}, Stereotypes: []string{}},
			},
			Relationships: []dsl.Relationship{
				{Source: "Loan", Target: "Book", Kind: dsl.RelationAssociation, SourceMultiplicity: "*", TargetMultiplicity: "1"},
			},
		},
		Constraints: []dsl.Constraint{
			{Name: "LoanLimit", Context: "Loan", Kind: dsl.ConstraintInvariant, Expression: "self.days <= 30"},
		},
		Metadata: map[string]any{"source": "unit-test"},
	}
}

func TestRoundTrip(t *testing.T) {
	m := sampleModel()

	data, err := dsl.Marshal(m)
	require.NoError(t, err)

	back, err := dsl.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "model.json")
	m := sampleModel()

	require.NoError(t, dsl.Save(path, m))
	loaded, err := dsl.Load(path)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)
}

func TestPersistedFieldNames(t *testing.T) {
	data, err := dsl.Marshal(sampleModel())
	require.NoError(t, err)

	for _, key := range []string{`"usecase_diagram"`, `"sequence_diagrams"`, `"class_diagram"`, `"ocl_constraints"`, `"metadata"`, `"usecases"`} {
		assert.Contains(t, string(data), key)
	}
}

func TestBuildUseCaseDiagram(t *testing.T) {
	t.Run("fills nil collections", func(t *testing.T) {
		d, err := dsl.BuildUseCaseDiagram(map[string]any{
			"name":     "UC",
			"actors":   []any{map[string]any{"name": "User", "kind": "primary"}},
			"usecases": []any{map[string]any{"name": "Login", "actor": "User"}},
		})
		require.NoError(t, err)
		require.Len(t, d.UseCases, 1)
		assert.NotNil(t, d.UseCases[0].Includes)
		assert.NotNil(t, d.UseCases[0].Postconditions)
	})

	t.Run("missing actor name", func(t *testing.T) {
		_, err := dsl.BuildUseCaseDiagram(`{"name":"UC","actors":[{"kind":"primary"}],"usecases":[]}`)
		require.Error(t, err)

		var se *dsl.SchemaValidationError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, dsl.SchemaUseCaseDiagram, se.Schema)
		require.Len(t, se.Problems, 1)
		assert.Equal(t, "actors[0].name", se.Problems[0].Path)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := dsl.BuildUseCaseDiagram(`{"name":"UC","actors":"nobody","usecases":[]}`)
		require.Error(t, err)
		assert.True(t, dsl.IsSchemaValidation(err))
	})

	t.Run("null", func(t *testing.T) {
		_, err := dsl.BuildUseCaseDiagram(nil)
		assert.True(t, dsl.IsSchemaValidation(err))
	})
}

func TestBuildClassDiagramRejectsUnknownRelationKind(t *testing.T) {
	_, err := dsl.BuildClassDiagram(map[string]any{
		"name":    "Domain",
		"classes": []any{map[string]any{"name": "A"}, map[string]any{"name": "B"}},
		"relationships": []any{
			map[string]any{"source": "A", "target": "B", "kind": "friendship"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relationships[0].kind")
}

func TestBuildConstraint(t *testing.T) {
	c, err := dsl.BuildConstraint(map[string]any{
		"name": "Positive", "context": "Account", "kind": "invariant", "expression": "self.balance >= 0",
	})
	require.NoError(t, err)
	assert.Equal(t, dsl.ConstraintInvariant, c.Kind)

	_, err = dsl.BuildConstraint(map[string]any{"name": "Broken", "kind": "inv"})
	require.Error(t, err)
	var se *dsl.SchemaValidationError
	require.ErrorAs(t, err, &se)
	assert.Len(t, se.Problems, 3)
}

func TestClone(t *testing.T) {
	m := sampleModel()
	c := m.Clone()
	require.NotNil(t, c)
	assert.Equal(t, m, c)

	c.UseCaseDiagram.Actors[0].Name = "Changed"
	assert.Equal(t, "Member", m.UseCaseDiagram.Actors[0].Name)
}

func TestAnalyzeComplexity(t *testing.T) {
	c := dsl.AnalyzeComplexity(sampleModel())
	assert.Equal(t, 2, c.UseCases)
	assert.Equal(t, 2, c.Actors)
	assert.Equal(t, 2, c.Classes)
	assert.InDelta(t, 2*0.3+2*0.2+2*0.3+0.1+0.1, c.Score, 1e-9)
	assert.Equal(t, dsl.ComplexitySimple, c.Level)

	big := sampleModel()
	for i := 0; i < 20; i++ {
		big.ClassDiagram.Classes = append(big.ClassDiagram.Classes, dsl.Class{Name: "C"})
	}
	assert.Equal(t, dsl.ComplexityMedium, dsl.AnalyzeComplexity(big).Level)

	for i := 0; i < 20; i++ {
		big.UseCaseDiagram.UseCases = append(big.UseCaseDiagram.UseCases, dsl.UseCase{Name: "U"})
	}
	assert.Equal(t, dsl.ComplexityComplex, dsl.AnalyzeComplexity(big).Level)
}
