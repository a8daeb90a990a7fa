package director

// Display is what the panel area should present.
type Display string

const (
	// PromptSelect asks the user to pick a candidate.
	PromptSelect Display = "select"
	// PromptDirect asks the user to direct the selected candidate.
	PromptDirect Display = "direct"
	// ShowPanels shows the remastered panels.
	ShowPanels Display = "panels"
)

// DisplayFor derives the display from the selected index, the index that was
// last directed, and the number of remastered panels.
func DisplayFor(selected, directed *int, resultCount int) Display {
	switch {
	case selected == nil:
		return PromptSelect
	case directed == nil || *directed != *selected || resultCount == 0:
		return PromptDirect
	default:
		return ShowPanels
	}
}
