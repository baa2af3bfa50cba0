// internal/httpserver/routes_games.go
//
// Tic-tac-toe and memory routes. Each visitor plays against their own
// workspace; delayed transitions (auto-reset, card comparison) run
// server-side, so clients poll the GET endpoints to see them land.
//   - GET  /api/games/tictactoe        → board
//   - POST /api/games/tictactoe/move   → {"cell":4}
//   - POST /api/games/tictactoe/reset
//   - GET  /api/games/memory           → deck
//   - POST /api/games/memory/flip      → {"index":7}
//   - POST /api/games/memory/reset

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/portfolio/apps/go-server/internal/game/memory"
	"github.com/robalobadob/portfolio/apps/go-server/internal/game/tictactoe"
)

type moveReq struct {
	Cell *int `json:"cell"`
}

type flipReq struct {
	Index *int `json:"index"`
}

func (s *Server) mountGames(r chi.Router) {
	r.Route("/games/tictactoe", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(workspaceFrom(r).TicTacToe())
		})
		r.Post("/move", s.handleTicTacToeMove)
		r.Post("/reset", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(workspaceFrom(r).ResetTicTacToe())
		})
	})
	r.Route("/games/memory", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(workspaceFrom(r).Memory())
		})
		r.Post("/flip", s.handleMemoryFlip)
		r.Post("/reset", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(workspaceFrom(r).ResetMemory())
		})
	})
}

func (s *Server) handleTicTacToeMove(w http.ResponseWriter, r *http.Request) {
	var body moveReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Cell == nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	v, err := workspaceFrom(r).PlayTicTacToe(*body.Cell)
	if err != nil {
		writeGameError(w, err, tictactoe.ErrOutOfRange)
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleMemoryFlip(w http.ResponseWriter, r *http.Request) {
	var body flipReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Index == nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	v, err := workspaceFrom(r).FlipMemory(*body.Index)
	if err != nil {
		writeGameError(w, err, memory.ErrOutOfRange)
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeGameError maps a rejected game input to a JSON error: out-of-range
// input is a 400, everything else (cell taken, busy, game over) a 409.
func writeGameError(w http.ResponseWriter, err, badInput error) {
	code := http.StatusConflict
	if errors.Is(err, badInput) {
		code = http.StatusBadRequest
	}
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	http.Error(w, string(b), code)
}
