package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/madhatter5501/noteboard/internal/i18n"
	"github.com/madhatter5501/noteboard/kanban"
)

// CardResponse is returned by card and item commands.
type CardResponse struct {
	Card   kanban.Card     `json:"card"`
	Column kanban.ColumnID `json:"column"`
	Action string          `json:"action"`
}

// apiGetBoard returns the full board state as JSON.
func (s *Server) apiGetBoard(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.board.Snapshot())
}

// apiGetCard returns a single card by ID.
func (s *Server) apiGetCard(w http.ResponseWriter, r *http.Request) {
	card, col, err := s.board.Card(r.PathValue("id"))
	if err != nil {
		s.boardError(w, r, err)
		return
	}
	s.jsonResponse(w, CardResponse{Card: card, Column: col, Action: kanban.ActionNone.String()})
}

// CreateCardRequest is the request body for creating a card.
type CreateCardRequest struct {
	Title string `json:"title"`
}

// apiCreateCard adds a card to the New column.
func (s *Server) apiCreateCard(w http.ResponseWriter, r *http.Request) {
	var req CreateCardRequest

	// Support both JSON and form data
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") || strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			s.badRequest(w, r, "invalid form data")
			return
		}
		req.Title = r.FormValue("title")
	} else if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.badRequest(w, r, "invalid request body")
			return
		}
	}

	card, err := s.board.AddCard(r.Context(), req.Title)
	s.record("add_card", kanban.ActionNone, err)
	if err != nil {
		s.boardError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, CardResponse{Card: card, Column: kanban.ColumnNew, Action: kanban.ActionNone.String()})
}

// apiRemoveCard deletes the card at an index of a column.
func (s *Server) apiRemoveCard(w http.ResponseWriter, r *http.Request) {
	col, err := kanban.ParseColumn(r.PathValue("column"))
	if err != nil {
		s.boardError(w, r, err)
		return
	}
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}

	err = s.board.RemoveCard(r.Context(), col, index)
	s.record("remove_card", kanban.ActionNone, err)
	if err != nil {
		s.boardError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveCardRequest is the request body for moving a card.
type MoveCardRequest struct {
	Target string `json:"target"`
}

// apiMoveCard moves a card to another column.
func (s *Server) apiMoveCard(w http.ResponseWriter, r *http.Request) {
	var req MoveCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, r, "invalid request body")
		return
	}
	target, err := kanban.ParseColumn(req.Target)
	if err != nil {
		s.badRequest(w, r, "unknown target column")
		return
	}

	id := r.PathValue("id")
	err = s.board.MoveCard(r.Context(), id, target)
	s.record("move_card", kanban.ActionNone, err)
	if err != nil {
		s.boardError(w, r, err)
		return
	}
	s.cardResponse(w, r, http.StatusOK, id, kanban.ActionNone)
}

// apiAddItem appends an empty checklist item.
func (s *Server) apiAddItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	action, err := s.board.AddItem(r.Context(), id)
	s.record("add_item", action, err)
	if err != nil {
		s.boardError(w, r, err)
		return
	}
	s.cardResponse(w, r, http.StatusCreated, id, action)
}

// apiRemoveItem deletes a checklist item.
func (s *Server) apiRemoveItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	action, err := s.board.RemoveItem(r.Context(), id, index)
	s.record("remove_item", action, err)
	if err != nil {
		s.boardError(w, r, err)
		return
	}
	s.cardResponse(w, r, http.StatusOK, id, action)
}

// UpdateItemRequest is the request body for changing a checklist item.
// Absent fields are left alone.
type UpdateItemRequest struct {
	Completed *bool   `json:"completed"`
	Text      *string `json:"text"`
	Editing   *bool   `json:"editing"`
}

// apiUpdateItem applies the fields of an UpdateItemRequest in the order a
// user would: open for editing, write the text, tick the box, save.
func (s *Server) apiUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, r, "invalid request body")
		return
	}
	if req.Completed == nil && req.Text == nil && req.Editing == nil {
		s.badRequest(w, r, "nothing to update")
		return
	}
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	id := r.PathValue("id")
	steps := []struct {
		op  string
		run func() (kanban.Action, error)
		on  bool
	}{
		{"set_editing", func() (kanban.Action, error) { return s.board.SetItemEditing(ctx, id, index, true) },
			req.Editing != nil && *req.Editing},
		{"edit_text", func() (kanban.Action, error) { return s.board.EditItemText(ctx, id, index, *req.Text) },
			req.Text != nil},
		{"toggle_item", func() (kanban.Action, error) { return s.board.ToggleItem(ctx, id, index, *req.Completed) },
			req.Completed != nil},
		{"set_editing", func() (kanban.Action, error) { return s.board.SetItemEditing(ctx, id, index, false) },
			req.Editing != nil && !*req.Editing},
	}

	last := kanban.ActionNone
	for _, step := range steps {
		if !step.on {
			continue
		}
		action, err := step.run()
		s.record(step.op, action, err)
		if err != nil {
			s.boardError(w, r, err)
			return
		}
		if action != kanban.ActionNone {
			last = action
		}
	}
	s.cardResponse(w, r, http.StatusOK, id, last)
}

// --- Helpers ---

func (s *Server) record(op string, action kanban.Action, err error) {
	if s.metrics != nil {
		s.metrics.RecordOperation(op, action, err)
	}
}

func (s *Server) pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.badRequest(w, r, "index must be a number")
		return 0, false
	}
	return index, true
}

// cardResponse writes the current state of a card after a command.
func (s *Server) cardResponse(w http.ResponseWriter, r *http.Request, code int, id string, action kanban.Action) {
	card, col, err := s.board.Card(id)
	if err != nil {
		s.boardError(w, r, err)
		return
	}
	s.writeJSON(w, code, CardResponse{Card: card, Column: col, Action: action.String()})
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// statusFor maps an error kind to an HTTP status code.
func statusFor(kind string) int {
	switch kind {
	case kanban.KindCapacity, kanban.KindLocked, kanban.KindTerminal, kanban.KindNotEditable:
		return http.StatusConflict
	case kanban.KindNotFound:
		return http.StatusNotFound
	case kanban.KindInvalid, i18n.KeyBadRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// boardError writes a localized error for a failed board command.
func (s *Server) boardError(w http.ResponseWriter, r *http.Request, err error) {
	kind := kanban.Kind(err)
	code := statusFor(kind)
	if code == http.StatusInternalServerError {
		s.logger.Error("Board command failed", "path", r.URL.Path, "error", err)
	}
	s.jsonError(w, ErrorResponse{
		Error:  s.localizer(r).Kind(kind),
		Kind:   kind,
		Detail: err.Error(),
	}, code)
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	s.jsonError(w, ErrorResponse{
		Error:  s.localizer(r).Text(i18n.KeyBadRequest),
		Kind:   i18n.KeyBadRequest,
		Detail: detail,
	}, http.StatusBadRequest)
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	s.writeJSON(w, http.StatusOK, data)
}

// jsonError writes a JSON error response.
func (s *Server) jsonError(w http.ResponseWriter, body ErrorResponse, code int) {
	s.writeJSON(w, code, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}
