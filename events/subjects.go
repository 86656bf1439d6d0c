package events

import (
	"strings"

	"github.com/c360studio/semmodel/workflow"
)

// Subject suffixes under the configured prefix.
const (
	SuffixRunStarted   = "run.started"
	SuffixRunCompleted = "run.completed"
	SuffixStage        = "stage"
	SuffixLLMCall      = "llm.call"
)

// StageSubject returns "<prefix>.stage.<stage>", with the stage lowercased.
func StageSubject(prefix string, stage workflow.Stage) string {
	return prefix + "." + SuffixStage + "." + strings.ToLower(string(stage))
}

// RunStartedSubject returns "<prefix>.run.started".
func RunStartedSubject(prefix string) string {
	return prefix + "." + SuffixRunStarted
}

// RunCompletedSubject returns "<prefix>.run.completed".
func RunCompletedSubject(prefix string) string {
	return prefix + "." + SuffixRunCompleted
}

// LLMCallSubject returns "<prefix>.llm.call".
func LLMCallSubject(prefix string) string {
	return prefix + "." + SuffixLLMCall
}
