package web

import (
	"math"
	"net/http"

	"github.com/madhatter5501/noteboard/internal/i18n"
	"github.com/madhatter5501/noteboard/kanban"
)

// boardView is the template data for the board page and partial.
type boardView struct {
	Title        string
	Lang         string
	DefaultTitle string
	Locked       bool
	NewFull      bool
	Columns      []columnView
	T            *i18n.Localizer
}

type columnView struct {
	ID       kanban.ColumnID
	Title    string
	Count    int
	Capacity int
	Cards    []cardView
}

type cardView struct {
	kanban.Card
	Column  kanban.ColumnID
	Index   int
	Percent int
	Done    bool
	T       *i18n.Localizer
}

func newBoardView(snap kanban.Snapshot, t *i18n.Localizer) boardView {
	view := boardView{
		Title:        "Noteboard",
		Lang:         t.Tag().String(),
		DefaultTitle: kanban.DefaultCardTitle,
		Locked:       snap.Locked,
		T:            t,
	}
	if limit := snap.Capacities.New; limit > 0 && len(snap.NewColumn) >= limit {
		view.NewFull = true
	}

	for _, col := range kanban.Columns {
		cards := snap.Column(col)
		cv := columnView{
			ID:       col,
			Title:    t.Column(col),
			Count:    len(cards),
			Capacity: snap.Capacities.Of(col),
			Cards:    make([]cardView, 0, len(cards)),
		}
		for i, card := range cards {
			cv.Cards = append(cv.Cards, cardView{
				Card:    card,
				Column:  col,
				Index:   i,
				Percent: int(math.Round(kanban.CompletionPercentage(card))),
				Done:    card.Status == kanban.StatusDone,
				T:       t,
			})
		}
		view.Columns = append(view.Columns, cv)
	}
	return view
}

// handleBoard renders the main kanban board view.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	s.render(w, "board.html", newBoardView(s.board.Snapshot(), s.localizer(r)))
}
