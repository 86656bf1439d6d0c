package dsl

// ComplexityLevel buckets a complexity score.
type ComplexityLevel string

const (
	ComplexitySimple  ComplexityLevel = "simple"
	ComplexityMedium  ComplexityLevel = "medium"
	ComplexityComplex ComplexityLevel = "complex"
)

// Complexity summarizes the size of a model.
type Complexity struct {
	UseCases      int             `json:"usecase_count"`
	Actors        int             `json:"actor_count"`
	Classes       int             `json:"class_count"`
	Relationships int             `json:"relationship_count"`
	Constraints   int             `json:"constraint_count"`
	Score         float64         `json:"complexity_score"`
	Level         ComplexityLevel `json:"complexity_level"`
}

// AnalyzeComplexity computes a weighted size score for the model.
func AnalyzeComplexity(m *DomainModel) Complexity {
	c := Complexity{
		UseCases:      len(m.UseCaseDiagram.UseCases),
		Actors:        len(m.UseCaseDiagram.Actors),
		Classes:       len(m.ClassDiagram.Classes),
		Relationships: len(m.ClassDiagram.Relationships),
		Constraints:   len(m.Constraints),
	}
	c.Score = float64(c.UseCases)*0.3 +
		float64(c.Actors)*0.2 +
		float64(c.Classes)*0.3 +
		float64(c.Relationships)*0.1 +
		float64(c.Constraints)*0.1

	switch {
	case c.Score > 10:
		c.Level = ComplexityComplex
	case c.Score > 5:
		c.Level = ComplexityMedium
	default:
		c.Level = ComplexitySimple
	}
	return c
}
