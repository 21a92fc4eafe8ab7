package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quizwiz-service/internal/app"
	"quizwiz-service/internal/domain"
)

const writeWait = 10 * time.Second

type WSHandler struct {
	service  *app.ScoreAttackService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ScoreAttackService, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Index *int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and hosts one score-attack controller for the
// lifetime of the connection. Closing the connection is the client leaving.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	q := r.URL.Query()
	user := domain.User{
		ID:          q.Get("userId"),
		DisplayName: q.Get("name"),
		AvatarURL:   q.Get("avatar"),
	}
	spectate, _ := strconv.ParseBool(q.Get("spectate"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	controller := h.service.NewController(gameID, user, spectate)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("game_id", gameID).Msg("controller stopped")
		}
	}()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// Single writer: views and replies share the connection.
	go func() {
		defer close(writerDone)
		views := controller.Views()
		for {
			var msg outboundMessage[any]
			select {
			case view, ok := <-views:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(writeWait))
					_ = conn.Close()
					return
				}
				msg = outboundMessage[any]{Type: "state", Payload: view}
			case msg = <-send:
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("game_id", gameID).Msg("ws write error")
				cancel()
				_ = conn.Close()
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
					continue
				}
			}
			controller.SubmitAnswer(payload.Index)
		case "reset":
			controller.Reset()
		case "leave":
			controller.Leave()
		default:
			reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	cancel()
	<-runDone
	<-writerDone
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
