package kanban

// Action is the move the rules engine decides for a card.
type Action int

const (
	ActionNone Action = iota
	ActionMoveToInProcess
	ActionMoveToDone
	ActionMoveToNew
)

func (a Action) String() string {
	switch a {
	case ActionMoveToInProcess:
		return "move_to_in_process"
	case ActionMoveToDone:
		return "move_to_done"
	case ActionMoveToNew:
		return "move_to_new"
	}
	return "none"
}

// CompletionPercentage returns checked items over total items, times 100.
// Cards never have zero items; for one that does it returns 0.
func CompletionPercentage(card Card) float64 {
	if len(card.Items) == 0 {
		return 0
	}
	return float64(card.CompletedCount()) / float64(len(card.Items)) * 100
}

// EvaluateTransition decides where a card should go after its checklist
// changed. Thresholds are strict: exactly 50% never moves a card.
func EvaluateTransition(card Card) Action {
	pct := CompletionPercentage(card)
	switch card.Status {
	case StatusInProcess:
		if pct == 100 {
			return ActionMoveToDone
		}
		if pct < 50 {
			return ActionMoveToNew
		}
	case StatusNew:
		if pct > 50 {
			return ActionMoveToInProcess
		}
	}
	return ActionNone
}
