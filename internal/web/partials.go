package web

import (
	"net/http"
)

// partialBoard returns just the board content for a refresh.
func (s *Server) partialBoard(w http.ResponseWriter, r *http.Request) {
	s.render(w, "board_content", newBoardView(s.board.Snapshot(), s.localizer(r)))
}
