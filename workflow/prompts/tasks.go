package prompts

import (
	"fmt"
	"strings"

	"github.com/c360studio/semmodel/dsl"
)

// AnalysisInput builds the analyst's task from the raw requirements.
func AnalysisInput(requirements string) string {
	return fmt.Sprintf("Analyze the following requirements:\n\n%s", requirements)
}

// UseCaseInput builds the use-case modeler's task.
func UseCaseInput(requirements, analysis string) string {
	var sb strings.Builder
	sb.WriteString("Build the use case diagram.\n\n## Requirements\n\n")
	sb.WriteString(requirements)
	if analysis != "" {
		sb.WriteString("\n\n## Analysis\n\n")
		sb.WriteString(analysis)
	}
	return sb.String()
}

// ClassInput builds the class designer's task.
func ClassInput(requirements, analysis, usecaseJSON string) string {
	var sb strings.Builder
	sb.WriteString("Build the conceptual class diagram.\n\n## Requirements\n\n")
	sb.WriteString(requirements)
	if analysis != "" {
		sb.WriteString("\n\n## Analysis\n\n")
		sb.WriteString(analysis)
	}
	sb.WriteString("\n\n## Use Case Diagram\n\n")
	sb.WriteString(usecaseJSON)
	return sb.String()
}

// SequenceInput builds the sequence designer's task for one use case.
func SequenceInput(uc dsl.UseCase, systemName, classJSON string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Build the system sequence diagram for use case %q.\n\n", uc.Name)
	fmt.Fprintf(&sb, "- System: %s\n", systemName)
	fmt.Fprintf(&sb, "- Actor: %s\n", uc.Actor)
	if uc.Description != "" {
		fmt.Fprintf(&sb, "- Description: %s\n", uc.Description)
	}
	writeList(&sb, "Preconditions", uc.Preconditions)
	writeList(&sb, "Postconditions", uc.Postconditions)
	sb.WriteString("\n## Class Diagram\n\n")
	sb.WriteString(classJSON)
	return sb.String()
}

// ConstraintInput builds the constraint expert's task.
func ConstraintInput(requirements, classJSON, usecaseJSON string) string {
	return fmt.Sprintf("Write OCL constraints for this model.\n\n## Requirements\n\n%s\n\n## Class Diagram\n\n%s\n\n## Use Case Diagram\n\n%s",
		requirements, classJSON, usecaseJSON)
}

// ValidationInput builds the validator's task. findings is the rendered
// consistency report and may be empty.
func ValidationInput(requirements, modelJSON, findings string) string {
	var sb strings.Builder
	sb.WriteString("Review this candidate model.\n\n## Requirements\n\n")
	sb.WriteString(requirements)
	sb.WriteString("\n\n## Candidate Model\n\n")
	sb.WriteString(modelJSON)
	if findings != "" {
		sb.WriteString("\n\n## Automated Consistency Findings\n\n")
		sb.WriteString(findings)
	}
	return sb.String()
}

// ImprovementInput builds the coordinator's revision task.
func ImprovementInput(feedback, modelJSON string) string {
	return fmt.Sprintf("Improve the model according to this feedback.\n\n## Feedback\n\n%s\n\n## Current Model\n\n%s", feedback, modelJSON)
}

// FormatCorrection wraps a task with the reason the previous answer was
// rejected, for a format-correction retry.
func FormatCorrection(task, previous string, cause error) string {
	return fmt.Sprintf("%s\n\n## Previous Answer Rejected\n\nYour previous answer could not be used: %v\n\nPrevious answer:\n\n%s\n\nAnswer again using exactly the requested JSON format.",
		task, cause, truncate(previous, 2000))
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "- %s:\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "  - %s\n", it)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
