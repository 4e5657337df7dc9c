package sequencer

// Task describes one independently-executed analysis stage. Prompt builds the
// full engine prompt from the immutable corpus text.
type Task struct {
	ID     string
	Title  string
	Prompt func(corpus string) string
}

// DefaultTasks is the fixed, ordered stage list for a whole-repository audit.
// Order matters to the reader (summary first, suggestions last) and the
// sequencer never reorders it.
func DefaultTasks() []Task {
	return []Task{
		{
			ID:    "summary",
			Title: "Project Summary",
			Prompt: withCorpus("You are a senior engineer reviewing an unfamiliar codebase. " +
				"Summarize what this project does, its main entry points, and how the pieces fit together. " +
				"Be concrete and reference file paths."),
		},
		{
			ID:    "stack",
			Title: "Tech Stack",
			Prompt: withCorpus("List the languages, frameworks, and notable dependencies this repository uses, " +
				"and what each is used for. Flag anything unusual or outdated."),
		},
		{
			ID:    "architecture",
			Title: "Architecture Review",
			Prompt: withCorpus("Critique the architecture of this repository: layering, coupling between modules, " +
				"separation of concerns, and dependency direction. Point at concrete files when you see a problem."),
		},
		{
			ID:    "errors",
			Title: "Error Handling Trends",
			Prompt: withCorpus("Examine how errors are handled across this repository. Identify recurring patterns, " +
				"swallowed errors, missing propagation, and places where failures would be hard to diagnose."),
		},
		{
			ID:    "suggestions",
			Title: "Actionable Suggestions",
			Prompt: withCorpus("Give a prioritized list of concrete, actionable improvements for this repository. " +
				"Each suggestion should name the files involved and the change to make."),
		},
	}
}

func withCorpus(instruction string) func(string) string {
	return func(corpus string) string {
		return instruction + "\n\nRepository files follow, each delimited by '// FILE:' headers.\n\n" + corpus
	}
}
