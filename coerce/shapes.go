package coerce

var visibilities = Enum(map[string][]string{
	"private":   {"-"},
	"public":    {"+"},
	"protected": {"#"},
	"package":   {"~"},
})

// Actor is the shape of one use-case actor.
var Actor = &Shape{
	Name:      "actor",
	ScalarKey: "name",
	Rules: []Rule{
		{Canonical: "name", Aliases: []string{"actor_name", "title"}, Cardinality: Scalar},
		{Canonical: "description", Aliases: []string{"desc"}, Cardinality: Joined},
		{
			Canonical: "kind",
			Aliases:   []string{"type", "actor_type", "role"},
			Default:   Text("primary"),
			Values: Enum(map[string][]string{
				"primary":   {"main", "principal", "primary actor"},
				"secondary": {"supporting", "external", "system", "secondary actor"},
			}),
			Fallback: "primary",
		},
	},
}

// UseCase is the shape of one use case.
var UseCase = &Shape{
	Name:      "usecase",
	ScalarKey: "name",
	Rules: []Rule{
		{Canonical: "name", Aliases: []string{"title", "usecase_name", "use_case_name"}, Cardinality: Scalar, Default: Indexed("UseCase %d")},
		{Canonical: "description", Aliases: []string{"desc"}, Cardinality: Joined},
		{Canonical: "actor", Aliases: []string{"actors", "participants", "primary_actor"}, Cardinality: Scalar, Default: Text("")},
		{Canonical: "includes", Aliases: []string{"include"}, Cardinality: List, Flatten: true, Default: EmptyList()},
		{Canonical: "extends", Aliases: []string{"extend"}, Cardinality: List, Flatten: true, Default: EmptyList()},
		{Canonical: "preconditions", Aliases: []string{"precondition", "pre_conditions"}, Cardinality: List, Flatten: true, Default: EmptyList()},
		{Canonical: "postconditions", Aliases: []string{"postcondition", "post_conditions"}, Cardinality: List, Flatten: true, Default: EmptyList()},
	},
}

// UseCaseDiagram is the shape of the use-case generation output.
var UseCaseDiagram = &Shape{
	Name:   "usecase_diagram",
	Unwrap: []string{"usecase_diagram", "use_case_diagram", "useCaseDiagram"},
	Rules: []Rule{
		{Canonical: "name", Aliases: []string{"title", "diagram_name"}, Cardinality: Scalar, Default: Text("Use Case Diagram")},
		{Canonical: "description", Aliases: []string{"desc"}, Cardinality: Joined, Default: Text("Generated use case diagram")},
		{Canonical: "actors", Aliases: []string{"participants"}, Cardinality: List, Default: EmptyList(), Item: Actor},
		{Canonical: "usecases", Aliases: []string{"useCases", "use_cases", "UseCases"}, Cardinality: List, Default: EmptyList(), Item: UseCase},
	},
}

// Attribute is the shape of one class attribute.
var Attribute = &Shape{
	Name:      "attribute",
	ScalarKey: "name",
	Rules: []Rule{
		{Canonical: "name", Aliases: []string{"attribute_name"}, Cardinality: Scalar},
		{Canonical: "type", Aliases: []string{"data_type", "datatype", "dataType"}, Cardinality: Scalar, Default: Text("")},
		{Canonical: "visibility", Default: Text("private"), Values: visibilities, Fallback: "private"},
		{Canonical: "multiplicity", Aliases: []string{"cardinality"}, AsString: true, Default: Text("1")},
		{Canonical: "description", Aliases: []string{"desc"}, Cardinality: Joined},
	},
}

// Method is the shape of one class method.
var Method = &Shape{
	Name:      "method",
	ScalarKey: "name",
	Rules: []Rule{
		{Canonical: "name", Aliases: []string{"method_name", "operation"}, Cardinality: Scalar},
		{Canonical: "parameters", Aliases: []string{"params", "arguments", "args"}, Cardinality: List, Flatten: true, Default: EmptyList()},
		{Canonical: "return_type", Aliases: []string{"returns", "return", "returnType"}, Cardinality: Scalar, AsString: true},
		{Canonical: "visibility", Default: Text("public"), Values: visibilities, Fallback: "public"},
		{Canonical: "description", Aliases: []string{"desc"}, Cardinality: Joined},
	},
}

// Class is the shape of one conceptual class.
var Class = &Shape{
	Name:      "class",
	ScalarKey: "name",
	Rules: []Rule{
		{Canonical: "name", Aliases: []string{"class_name", "title"}, Cardinality: Scalar},
		{Canonical: "description", Aliases: []string{"desc"}, Cardinality: Joined},
		{Canonical: "attributes", Aliases: []string{"fields", "properties", "attribute"}, Cardinality: List, Default: EmptyList(), Item: Attribute},
		{Canonical: "methods", Aliases: []string{"operations", "functions", "method"}, Cardinality: List, Default: EmptyList(), Item: Method},
		{Canonical: "stereotypes", Aliases: []string{"stereotype"}, Cardinality: List, Flatten: true, Default: EmptyList()},
	},
}

// Relationship is the shape of one class relationship.
var Relationship = &Shape{
	Name: "relationship",
	Rules: []Rule{
		{Canonical: "name", Aliases: []string{"label"}, Cardinality: Scalar},
		{Canonical: "source", Aliases: []string{"from", "source_class", "sourceClass"}, Cardinality: Scalar, Default: Text("")},
		{Canonical: "target", Aliases: []string{"to", "target_class", "targetClass"}, Cardinality: Scalar, Default: Text("")},
		{
			Canonical: "kind",
			Aliases:   []string{"type", "relationship_type", "relation"},
			Default:   Text("association"),
			Values: Enum(map[string][]string{
				"association":    {"associates", "uses", "dependency"},
				"generalization": {"inheritance", "inherits", "is-a", "specialization"},
				"composition":    {"composite", "composed of"},
				"aggregation":    {"aggregate", "has-a"},
				"include":        {"includes"},
				"extend":         {"extends"},
			}),
			Fallback: "association",
		},
		{Canonical: "source_multiplicity", Aliases: []string{"sourceMultiplicity", "source_cardinality"}, AsString: true, Default: Text("1")},
		{Canonical: "target_multiplicity", Aliases: []string{"targetMultiplicity", "target_cardinality"}, AsString: true, Default: Text("1")},
		{Canonical: "description", Aliases: []string{"desc"}, Cardinality: Joined},
	},
}

// ClassDiagram is the shape of the class generation output.
var ClassDiagram = &Shape{
	Name:   "class_diagram",
	Unwrap: []string{"class_diagram", "classDiagram", "conceptual_class_diagram"},
	Rules: []Rule{
		{Canonical: "name", Aliases: []string{"title", "diagram_name"}, Cardinality: Scalar, Default: Text("Class Diagram")},
		{Canonical: "description", Aliases: []string{"desc"}, Cardinality: Joined, Default: Text("Generated class diagram")},
		{Canonical: "classes", Aliases: []string{"entities", "conceptual_classes", "class"}, Cardinality: List, Default: EmptyList(), Item: Class},
		{Canonical: "relationships", Aliases: []string{"relations", "associations", "relationship"}, Cardinality: List, Default: EmptyList(), Item: Relationship},
	},
}

// Message is the shape of one sequence diagram message.
var Message = &Shape{
	Name: "message",
	Rules: []Rule{
		{Canonical: "name", Aliases: []string{"label", "action", "message"}, Cardinality: Scalar, Default: Indexed("message %d")},
		{Canonical: "sender", Aliases: []string{"from", "source"}, Cardinality: Scalar, Default: Text("")},
		{Canonical: "receiver", Aliases: []string{"to", "target"}, Cardinality: Scalar, Default: Text("")},
		{
			Canonical: "kind",
			Aliases:   []string{"message_type", "type"},
			Default:   Text("synchronous"),
			Values: Enum(map[string][]string{
				"synchronous":  {"sync", "call"},
				"asynchronous": {"async", "signal"},
				"return":       {"reply", "response"},
			}),
			Fallback: "synchronous",
		},
		{Canonical: "parameters", Aliases: []string{"params", "arguments", "args"}, Cardinality: List, Flatten: true, Default: EmptyList()},
		{Canonical: "return_value", Aliases: []string{"returns", "return"}, Cardinality: Scalar, AsString: true},
	},
}

// SequenceDiagram is the shape of one sequence diagram.
var SequenceDiagram = &Shape{
	Name:   "sequence_diagram",
	Unwrap: []string{"sequence_diagram", "sequenceDiagram", "system_sequence_diagram"},
	Rules: []Rule{
		{Canonical: "name", Aliases: []string{"title", "diagram_name"}, Cardinality: Scalar, Default: Text("Sequence Diagram")},
		{Canonical: "description", Aliases: []string{"desc"}, Cardinality: Joined, Default: Text("Generated sequence diagram")},
		{Canonical: "usecase", Aliases: []string{"use_case", "useCase"}, Cardinality: Scalar},
		{Canonical: "actors", Aliases: []string{"participants"}, Cardinality: List, Flatten: true, Default: EmptyList()},
		{Canonical: "systems", Aliases: []string{"system", "objects"}, Cardinality: List, Flatten: true, Default: EmptyList()},
		{Canonical: "messages", Aliases: []string{"interactions", "steps", "message"}, Cardinality: List, Default: EmptyList(), Item: Message},
	},
}

// Constraint is the shape of one OCL constraint.
var Constraint = &Shape{
	Name: "ocl_constraint",
	Rules: []Rule{
		{Canonical: "name", Aliases: []string{"constraint_name", "title"}, Cardinality: Scalar, Default: Indexed("Constraint %d")},
		{Canonical: "context", Aliases: []string{"class", "target", "applies_to"}, Cardinality: Scalar, Default: Text("")},
		{
			Canonical: "kind",
			Aliases:   []string{"type", "constraint_type", "stereotype"},
			Default:   Text(""),
			Values: Enum(map[string][]string{
				"invariant":     {"inv"},
				"precondition":  {"pre"},
				"postcondition": {"post"},
			}),
		},
		{Canonical: "expression", Aliases: []string{"ocl", "expr", "body", "constraint"}, Cardinality: Joined, Default: Text("")},
		{Canonical: "description", Aliases: []string{"desc"}, Cardinality: Joined},
	},
}

// ValidationReport is the shape of the validation agent's verdict.
var ValidationReport = &Shape{
	Name:   "validation_report",
	Unwrap: []string{"validation", "validation_result"},
	Rules: []Rule{
		{
			Canonical:   "status",
			Aliases:     []string{"score", "result", "verdict", "outcome"},
			Cardinality: Scalar,
			Default:     Text("pass"),
			Values: Enum(map[string][]string{
				"pass":              {"passed", "ok", "approved", "accept", "accepted", "valid"},
				"needs_improvement": {"needs improvement", "needs-improvement", "needsimprovement", "improve", "revise"},
				"fail":              {"failed", "failure", "reject", "rejected", "invalid"},
			}),
		},
		{Canonical: "feedback", Aliases: []string{"comments", "suggestions", "comment"}, Cardinality: Joined, Default: Text("")},
		{Canonical: "details", Aliases: []string{"issues", "scores", "sub_scores"}, Default: EmptyObject()},
	},
}

// Improvement is the shape of the coordinator's revised model.
// Its parts carry no defaults: an absent part means "unchanged".
var Improvement = &Shape{
	Name:   "improvement",
	Unwrap: []string{"improved_model", "domain_model"},
	Rules: []Rule{
		{Canonical: "usecase_diagram", Aliases: []string{"use_case_diagram", "usecaseDiagram", "useCaseDiagram"}, Item: UseCaseDiagram},
		{Canonical: "class_diagram", Aliases: []string{"classDiagram", "conceptual_class_diagram"}, Item: ClassDiagram},
		{Canonical: "sequence_diagrams", Aliases: []string{"sequenceDiagrams", "system_sequence_diagrams"}, Cardinality: List, Item: SequenceDiagram},
		{Canonical: "ocl_constraints", Aliases: []string{"constraints", "oclConstraints"}, Cardinality: List, Item: Constraint},
	},
}

// DomainModel is the shape of a complete persisted model.
var DomainModel = &Shape{
	Name: "domain_model",
	Rules: []Rule{
		{Canonical: "name", Aliases: []string{"title", "model_name"}, Cardinality: Scalar, Default: Text("Domain Model")},
		{Canonical: "description", Aliases: []string{"desc"}, Cardinality: Joined, Default: Text("")},
		{Canonical: "usecase_diagram", Aliases: []string{"use_case_diagram", "usecaseDiagram", "useCaseDiagram"}, Default: EmptyObject(), Item: UseCaseDiagram},
		{Canonical: "class_diagram", Aliases: []string{"classDiagram", "conceptual_class_diagram"}, Default: EmptyObject(), Item: ClassDiagram},
		{Canonical: "sequence_diagrams", Aliases: []string{"sequenceDiagrams", "system_sequence_diagrams"}, Cardinality: List, Default: EmptyList(), Item: SequenceDiagram},
		{Canonical: "ocl_constraints", Aliases: []string{"constraints", "oclConstraints"}, Cardinality: List, Default: EmptyList(), Item: Constraint},
		{Canonical: "metadata", Default: EmptyObject()},
	},
}
