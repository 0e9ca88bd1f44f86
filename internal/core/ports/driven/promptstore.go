package driven

// Prompt names understood by PromptStore.
const (
	// PromptAnswerSystem opens the answer prompt.
	PromptAnswerSystem = "answer_system"

	// PromptAnswerClosing ends the answer prompt.
	PromptAnswerClosing = "answer_closing"
)

// PromptStore loads user-customisable prompt instructions.
type PromptStore interface {
	// Load returns the prompt text for name.
	// Implementations fall back to built-in defaults when no custom text exists.
	Load(name string) (string, error)
}
