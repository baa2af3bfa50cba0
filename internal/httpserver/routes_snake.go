// internal/httpserver/routes_snake.go
//
// Snake routes.
//   - GET  /api/games/snake              → current frame
//   - POST /api/games/snake/steer        → {"dir":"ArrowUp"} (first input starts the run)
//   - POST /api/games/snake/restart
//   - GET  /api/games/snake/ws           → WebSocket: frames out, steer/restart in
//   - GET  /api/games/snake/leaderboard  → best runs of today (or ?date=YYYY-MM-DD)
//
// Finished runs with a non-zero score are recorded per UTC day.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/portfolio/apps/go-server/internal/game/snake"
	"github.com/robalobadob/portfolio/apps/go-server/internal/kv"
	"github.com/robalobadob/portfolio/apps/go-server/internal/scores"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type steerReq struct {
	Dir string `json:"dir"`
}

func (s *Server) mountSnake(r chi.Router) {
	r.Route("/games/snake", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(workspaceFrom(r).Snake())
		})
		r.Post("/steer", s.handleSnakeSteer)
		r.Post("/restart", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(workspaceFrom(r).RestartSnake())
		})
		r.Get("/leaderboard", s.handleSnakeLeaderboard)
	})
}

func (s *Server) handleSnakeSteer(w http.ResponseWriter, r *http.Request) {
	var body steerReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	f, err := workspaceFrom(r).SteerSnake(body.Dir)
	if err != nil {
		writeGameError(w, err, snake.ErrBadDirection)
		return
	}
	_ = json.NewEncoder(w).Encode(f)
}

// handleSnakeLeaderboard returns top results for today (or ?date=YYYY-MM-DD).
func (s *Server) handleSnakeLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.scores == nil {
		http.Error(w, `{"error":"db_unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = scores.DateKey(s.clock.Now())
	}
	if !dateRe.MatchString(date) {
		http.Error(w, `{"error":"bad_date"}`, http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > 100 {
		limit = 100
	}
	list, err := s.scores.Leaderboard(r.Context(), date, limit)
	if err != nil {
		log.Error().Err(err).Str("date", date).Msg("snake leaderboard")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"date": date, "results": list})
}

// recordSnake stores a finished run on the leaderboard (best effort).
func (s *Server) recordSnake(visitor string, prefs kv.Store, f snake.Frame) {
	if s.scores == nil || f.Score == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var player string
	if s.users != nil {
		u, _ := s.users.WithCache(prefs).CurrentUser(ctx)
		player = userLabel(u, visitor)
	} else {
		player = userLabel(nil, visitor)
	}
	res := scores.Result{Player: player, Date: scores.DateKey(s.clock.Now()), Score: f.Score, Length: len(f.Body)}
	if err := s.scores.InsertResult(ctx, res); err != nil {
		log.Warn().Err(err).Str("visitor", visitor).Int("score", f.Score).Msg("record snake result")
	}
}

// ------------------------------ WebSocket ----------------------------------

// wsMsg is a client → server message.
type wsMsg struct {
	Type string `json:"type"` // "steer" | "restart"
	Dir  string `json:"dir,omitempty"`
}

// wsError is sent back when an input is rejected.
type wsError struct {
	Type  string `json:"type"` // always "error"
	Error string `json:"error"`
}

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// handleSnakeWS streams every frame of the visitor's snake and accepts
// steer/restart messages. A slow client drops frames rather than blocking
// the tick loop.
func (s *Server) handleSnakeWS(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("snake ws upgrade")
		return
	}
	connID := uuid.NewString()
	snakeConnections.Inc()
	log.Debug().Str("conn", connID).Str("visitor", ws.ID()).Msg("snake ws connected")

	out := make(chan any, 16)
	send := func(v any) {
		select {
		case out <- v:
		default:
		}
	}
	unsubscribe := ws.Subscribe(func(f snake.Frame) { send(f) })
	done := make(chan struct{})

	go func() {
		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-done:
				return
			case v := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(v); err != nil {
					log.Debug().Err(err).Str("conn", connID).Msg("snake ws write")
					_ = conn.Close()
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	defer func() {
		unsubscribe()
		close(done)
		_ = conn.Close()
		snakeConnections.Dec()
		log.Debug().Str("conn", connID).Msg("snake ws disconnected")
	}()

	send(ws.Snake())
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		var msg wsMsg
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("conn", connID).Msg("snake ws read")
			}
			return
		}
		ws.Touch()
		switch msg.Type {
		case "steer":
			// Accepted steers publish their own frame.
			if _, err := ws.SteerSnake(msg.Dir); err != nil {
				send(wsError{Type: "error", Error: err.Error()})
			}
		case "restart":
			ws.RestartSnake()
		default:
			send(wsError{Type: "error", Error: "unknown message type"})
		}
	}
}
