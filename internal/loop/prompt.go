package loop

import (
	"fmt"
	"strings"
)

// buildTaskPrompt constructs the per-iteration prompt for task mode.
// The first iteration carries the full task description; later ones
// remind the agent of the goal and ask it to review prior work before
// continuing, changing approach if it is stuck.
func buildTaskPrompt(task, phrase string, iteration int) string {
	var sb strings.Builder
	if iteration <= 1 {
		sb.WriteString("Task:\n")
		sb.WriteString(task)
		sb.WriteString("\n\nWork on this task until it is fully complete.\n")
	} else {
		fmt.Fprintf(&sb, "You are continuing work on this task (iteration %d):\n", iteration)
		sb.WriteString(task)
		sb.WriteString("\n\nReview what has already been done in the working directory, then continue from where you left off. If the previous approach is not working, change approach.\n")
	}
	fmt.Fprintf(&sb, "\nWhen the task is fully complete and verified, output exactly %s on its own line. Do not output it before everything is done.\n", phrase)
	return sb.String()
}

// buildTodoPrompt constructs the per-iteration prompt for TODO mode.
// The agent owns the checklist file: it marks the item in progress,
// works it, and rewrites the marker when done.
func buildTodoPrompt(checklistPath, itemText, phrase string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Work on this task from the checklist %s:\n\n%s\n\n", checklistPath, itemText)
	sb.WriteString("Mark the item as in progress (- [~]) while you work and as done (- [x]) when finished. ")
	sb.WriteString("If you cannot make progress on it, add [BLOCKED] to the item text with a short reason.\n")
	fmt.Fprintf(&sb, "\nIf every item in the checklist is done, output exactly %s on its own line.\n", phrase)
	return sb.String()
}
