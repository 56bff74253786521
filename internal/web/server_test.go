package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/madhatter5501/noteboard/internal/kvstore"
	"github.com/madhatter5501/noteboard/internal/metrics"
	"github.com/madhatter5501/noteboard/kanban"
)

func newTestServer(t *testing.T, doc kanban.Document) (*Server, *kanban.Board) {
	t.Helper()
	ctx := context.Background()
	p := kanban.NewPersistence(kvstore.NewMemory(), "")
	if err := p.Save(ctx, doc); err != nil {
		t.Fatal(err)
	}
	board, err := kanban.Open(ctx, p, kanban.Options{})
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewServer(board, Options{Language: "en", Metrics: metrics.New()})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, board
}

func do(t *testing.T, s *Server, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func card(id string, status kanban.Status, completed ...bool) kanban.Card {
	c := kanban.Card{ID: id, Title: id, Status: status}
	for _, done := range completed {
		c.Items = append(c.Items, kanban.ChecklistItem{Completed: done, Editing: true})
	}
	return c
}

func TestCreateCard(t *testing.T) {
	s, board := newTestServer(t, kanban.Document{})

	rec := do(t, s, "POST", "/api/cards", `{"title":"Groceries"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}
	resp := decode[CardResponse](t, rec)
	if resp.Card.Title != "Groceries" || resp.Column != kanban.ColumnNew {
		t.Errorf("response = %+v", resp)
	}
	if len(board.Snapshot().NewColumn) != 1 {
		t.Error("card not added to the board")
	}

	// Empty body falls back to the default title.
	rec = do(t, s, "POST", "/api/cards", "")
	if resp := decode[CardResponse](t, rec); resp.Card.Title != kanban.DefaultCardTitle {
		t.Errorf("Title = %q, want %q", resp.Card.Title, kanban.DefaultCardTitle)
	}
}

func TestCreateCardLockedIsLocalized(t *testing.T) {
	var doc kanban.Document
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		doc.InProgressColumn = append(doc.InProgressColumn, card(id, kanban.StatusInProcess, true, true, false))
	}
	s, _ := newTestServer(t, doc)

	rec := do(t, s, "POST", "/api/cards", `{"title":"x"}`, "Accept-Language", "ru-RU,ru;q=0.9")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Kind != kanban.KindLocked {
		t.Errorf("kind = %q, want %q", resp.Kind, kanban.KindLocked)
	}
	if !strings.Contains(resp.Error, "максимальное количество карточек") {
		t.Errorf("error = %q, want the Russian message", resp.Error)
	}
}

func TestUpdateItemMovesCard(t *testing.T) {
	s, board := newTestServer(t, kanban.Document{
		NewColumn: []kanban.Card{card("c", kanban.StatusNew, true, false, false)},
	})

	rec := do(t, s, "PATCH", "/api/cards/c/items/1", `{"completed":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[CardResponse](t, rec)
	if resp.Action != kanban.ActionMoveToInProcess.String() || resp.Column != kanban.ColumnInProgress {
		t.Errorf("response = %+v, want moved to in process", resp)
	}
	if _, col, _ := board.Card("c"); col != kanban.ColumnInProgress {
		t.Errorf("board has card in %s", col)
	}
}

func TestUpdateItemTextAndSave(t *testing.T) {
	s, board := newTestServer(t, kanban.Document{
		NewColumn: []kanban.Card{card("c", kanban.StatusNew, false, false, false)},
	})

	rec := do(t, s, "PATCH", "/api/cards/c/items/0", `{"text":"milk","editing":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	got, _, _ := board.Card("c")
	if got.Items[0].Text != "milk" || got.Items[0].Editing {
		t.Errorf("item = %+v, want saved text", got.Items[0])
	}

	rec = do(t, s, "PATCH", "/api/cards/c/items/0", `{"text":"bread"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("edit of saved item: status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if kind := decode[ErrorResponse](t, rec).Kind; kind != kanban.KindNotEditable {
		t.Errorf("kind = %q, want %q", kind, kanban.KindNotEditable)
	}
}

func TestErrorStatusCodes(t *testing.T) {
	s, _ := newTestServer(t, kanban.Document{
		NewColumn:       []kanban.Card{card("n", kanban.StatusNew, false, false, false)},
		CompletedColumn: []kanban.Card{card("d", kanban.StatusDone, true, true, true)},
	})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown card", "POST", "/api/cards/missing/move", `{"target":"inProgressColumn"}`, http.StatusNotFound},
		{"done is terminal", "PATCH", "/api/cards/d/items/0", `{"completed":false}`, http.StatusConflict},
		{"item minimum", "DELETE", "/api/cards/n/items/0", "", http.StatusConflict},
		{"invalid move", "POST", "/api/cards/n/move", `{"target":"done"}`, http.StatusBadRequest},
		{"unknown target", "POST", "/api/cards/n/move", `{"target":"archive"}`, http.StatusBadRequest},
		{"bad index", "DELETE", "/api/columns/newColumn/cards/x", "", http.StatusBadRequest},
		{"unknown column", "DELETE", "/api/columns/archive/cards/0", "", http.StatusNotFound},
		{"empty patch", "PATCH", "/api/cards/n/items/0", `{}`, http.StatusBadRequest},
		{"garbage body", "POST", "/api/cards/n/move", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestRemoveCardAndBoard(t *testing.T) {
	s, _ := newTestServer(t, kanban.Document{
		NewColumn: []kanban.Card{card("a", kanban.StatusNew, false, false, false), card("b", kanban.StatusNew, false, false, false)},
	})

	if rec := do(t, s, "DELETE", "/api/columns/new/cards/0", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	rec := do(t, s, "GET", "/api/board", "")
	var snap struct {
		NewColumn []kanban.Card `json:"newColumn"`
		Locked    bool          `json:"locked"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.NewColumn) != 1 || snap.NewColumn[0].ID != "b" {
		t.Errorf("newColumn = %+v, want only b", snap.NewColumn)
	}
}

func TestMoveCard(t *testing.T) {
	s, _ := newTestServer(t, kanban.Document{
		InProgressColumn: []kanban.Card{card("c", kanban.StatusInProcess, true, false, false)},
	})

	rec := do(t, s, "POST", "/api/cards/c/move", `{"target":"completedColumn"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[CardResponse](t, rec)
	if resp.Column != kanban.ColumnCompleted || resp.Card.CompletionDate == "" {
		t.Errorf("response = %+v, want done with completion date", resp)
	}
}

func TestBoardPage(t *testing.T) {
	s, _ := newTestServer(t, kanban.Document{
		NewColumn: []kanban.Card{{
			ID:     "c",
			Title:  "**Important**",
			Items:  []kanban.ChecklistItem{{Text: "<script>x</script>"}, {}, {}},
			Status: kanban.StatusNew,
		}},
	})

	rec := do(t, s, "GET", "/?lang=ru", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	body := rec.Body.String()
	for _, want := range []string{"<strong>Important</strong>", "Добавить заметку", "В процессе", `data-card="c"`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "<script>x</script>") {
		t.Error("item text was not escaped")
	}

	rec = do(t, s, "GET", "/partials/board", "")
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "<html") {
		t.Errorf("partial: status %d, full page returned = %v", rec.Code, strings.Contains(rec.Body.String(), "<html"))
	}

	if rec := do(t, s, "GET", "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown page status = %d, want 404", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, kanban.Document{})
	do(t, s, "POST", "/api/cards", `{"title":"x"}`)

	rec := do(t, s, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `noteboard_board_operations_total{op="add_card",result="ok"} 1`) {
		t.Errorf("metrics missing add_card counter:\n%s", rec.Body)
	}
}

func TestEventsStreamBoardUpdates(t *testing.T) {
	s, board := newTestServer(t, kanban.Document{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	next := func() (event, data string) {
		for lines.Scan() {
			line := lines.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && event != "":
				return event, data
			}
		}
		return event, data
	}

	if ev, data := next(); ev != "connected" || data != `{"revision":0}` {
		t.Fatalf("first event = %q %s, want connected at revision 0", ev, data)
	}

	for i, title := range []string{"one", "two"} {
		if _, err := board.AddCard(context.Background(), title); err != nil {
			t.Fatal(err)
		}
		ev, data := next()
		if ev != "board-update" {
			t.Fatalf("event = %q, want board-update", ev)
		}
		var got BoardEvent
		if err := json.Unmarshal([]byte(data), &got); err != nil {
			t.Fatalf("data %q: %v", data, err)
		}
		if got.Revision != uint64(i+1) || got.Counts[kanban.ColumnNew] != i+1 || got.Locked {
			t.Errorf("event %d = %+v", i, got)
		}
		if _, ok := got.Counts[kanban.ColumnCompleted]; !ok {
			t.Errorf("event %d has no count for the Done column", i)
		}
	}
}
