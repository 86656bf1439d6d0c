// Package dsl defines the structured requirements model produced by a
// modeling run: use-case, sequence and class diagrams plus constraints.
//
// Values are only ever produced by the Build functions in this package, which
// perform schema construction over coerced JSON. A DomainModel returned from a
// workflow run has passed schema construction field by field.
package dsl

// ActorKind classifies an actor's relationship to the system.
type ActorKind string

const (
	ActorPrimary   ActorKind = "primary"
	ActorSecondary ActorKind = "secondary"
)

// RelationKind is the kind of a class (or use case) relationship.
type RelationKind string

const (
	RelationInclude        RelationKind = "include"
	RelationExtend         RelationKind = "extend"
	RelationAssociation    RelationKind = "association"
	RelationGeneralization RelationKind = "generalization"
	RelationComposition    RelationKind = "composition"
	RelationAggregation    RelationKind = "aggregation"
)

// MessageKind is the call semantics of a sequence diagram message.
type MessageKind string

const (
	MessageSynchronous  MessageKind = "synchronous"
	MessageAsynchronous MessageKind = "asynchronous"
	MessageReturn       MessageKind = "return"
)

// ConstraintKind is the OCL stereotype of a constraint.
type ConstraintKind string

const (
	ConstraintPrecondition  ConstraintKind = "precondition"
	ConstraintPostcondition ConstraintKind = "postcondition"
	ConstraintInvariant     ConstraintKind = "invariant"
)

// Actor is a participant outside the system boundary.
type Actor struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Kind        ActorKind `json:"kind"`
}

// UseCase is a unit of functionality triggered by a single actor.
type UseCase struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Actor          string   `json:"actor"`
	Includes       []string `json:"includes"`
	Extends        []string `json:"extends"`
	Preconditions  []string `json:"preconditions"`
	Postconditions []string `json:"postconditions"`
}

// UseCaseDiagram groups actors and the use cases they drive.
type UseCaseDiagram struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Actors      []Actor   `json:"actors"`
	UseCases    []UseCase `json:"usecases"`
}

// Message is one interaction arrow in a sequence diagram.
type Message struct {
	Name        string      `json:"name"`
	Sender      string      `json:"sender"`
	Receiver    string      `json:"receiver"`
	Kind        MessageKind `json:"kind"`
	Parameters  []string    `json:"parameters"`
	ReturnValue string      `json:"return_value,omitempty"`
}

// SequenceDiagram details the system-level message flow of one use case.
type SequenceDiagram struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UseCase     string    `json:"usecase,omitempty"`
	Actors      []string  `json:"actors"`
	Systems     []string  `json:"systems"`
	Messages    []Message `json:"messages"`
}

// Attribute is a typed field of a conceptual class.
type Attribute struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Visibility   string `json:"visibility"`
	Multiplicity string `json:"multiplicity"`
	Description  string `json:"description,omitempty"`
}

// Method is an operation of a conceptual class.
type Method struct {
	Name        string   `json:"name"`
	Parameters  []string `json:"parameters"`
	ReturnType  string   `json:"return_type,omitempty"`
	Visibility  string   `json:"visibility"`
	Description string   `json:"description,omitempty"`
}

// Class is a conceptual domain class.
type Class struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Attributes  []Attribute `json:"attributes"`
	Methods     []Method    `json:"methods"`
	Stereotypes []string    `json:"stereotypes"`
}

// Relationship links two classes by name.
type Relationship struct {
	Name               string       `json:"name,omitempty"`
	Source             string       `json:"source"`
	Target             string       `json:"target"`
	Kind               RelationKind `json:"kind"`
	SourceMultiplicity string       `json:"source_multiplicity"`
	TargetMultiplicity string       `json:"target_multiplicity"`
	Description        string       `json:"description,omitempty"`
}

// ClassDiagram is the conceptual class model.
type ClassDiagram struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Classes       []Class        `json:"classes"`
	Relationships []Relationship `json:"relationships"`
}

// Constraint is an OCL constraint attached to a class or use case.
type Constraint struct {
	Name        string         `json:"name"`
	Context     string         `json:"context"`
	Kind        ConstraintKind `json:"kind"`
	Expression  string         `json:"expression"`
	Description string         `json:"description,omitempty"`
}

// DomainModel is the aggregate produced by a modeling run.
type DomainModel struct {
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	UseCaseDiagram   UseCaseDiagram    `json:"usecase_diagram"`
	SequenceDiagrams []SequenceDiagram `json:"sequence_diagrams"`
	ClassDiagram     ClassDiagram      `json:"class_diagram"`
	Constraints      []Constraint      `json:"ocl_constraints"`
	Metadata         map[string]any    `json:"metadata"`
}

// Valid reports whether k is a known actor kind.
func (k ActorKind) Valid() bool {
	return k == ActorPrimary || k == ActorSecondary
}

// Valid reports whether k is a known relationship kind.
func (k RelationKind) Valid() bool {
	switch k {
	case RelationInclude, RelationExtend, RelationAssociation,
		RelationGeneralization, RelationComposition, RelationAggregation:
		return true
	}
	return false
}

// Valid reports whether k is a known message kind.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageSynchronous, MessageAsynchronous, MessageReturn:
		return true
	}
	return false
}

// Valid reports whether k is a known constraint kind.
func (k ConstraintKind) Valid() bool {
	switch k {
	case ConstraintPrecondition, ConstraintPostcondition, ConstraintInvariant:
		return true
	}
	return false
}

// UseCaseNames returns use case names in declaration order.
func (d UseCaseDiagram) UseCaseNames() []string {
	names := make([]string, 0, len(d.UseCases))
	for _, uc := range d.UseCases {
		names = append(names, uc.Name)
	}
	return names
}

// FindUseCase returns the use case with the given name.
func (d UseCaseDiagram) FindUseCase(name string) (UseCase, bool) {
	for _, uc := range d.UseCases {
		if uc.Name == name {
			return uc, true
		}
	}
	return UseCase{}, false
}

// ClassNames returns class names in declaration order.
func (d ClassDiagram) ClassNames() []string {
	names := make([]string, 0, len(d.Classes))
	for _, c := range d.Classes {
		names = append(names, c.Name)
	}
	return names
}
