package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/elo-arena/brackets"
	"github.com/Dosada05/elo-arena/services"
)

const clientSendBuffer = 256

type WebSocketHandler struct {
	hub               *brackets.Hub
	projectService    services.ProjectService
	tournamentService services.TournamentService
	upgrader          websocket.Upgrader
	errorReporter
}

// NewWebSocketHandler builds the handler. allowedOrigins follows the CORS setting:
// empty or "*" accepts every origin.
func NewWebSocketHandler(hub *brackets.Hub, ps services.ProjectService, ts services.TournamentService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:               hub,
		projectService:    ps,
		tournamentService: ts,
		errorReporter:     newErrorReporter(logger),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// ServeProjectWs подписывает клиента на RANKINGS_UPDATED проекта.
// Клиент подключается к /ws/projects/{projectID}
func (h *WebSocketHandler) ServeProjectWs(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	if _, err := h.projectService.GetProject(r.Context(), ownerID, projectID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.serve(w, r, brackets.ProjectRoom(projectID))
}

// ServeTournamentWs подписывает клиента на обновления сетки.
// Клиент подключается к /ws/projects/{projectID}/tournaments/{tournamentID}
func (h *WebSocketHandler) ServeTournamentWs(w http.ResponseWriter, r *http.Request) {
	ownerID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if _, err := h.tournamentService.GetTournament(r.Context(), ownerID, projectID, tournamentID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.serve(w, r, brackets.TournamentRoom(tournamentID))
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, roomID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой
		h.logger.Warn("websocket upgrade failed", slog.String("room", roomID), slog.Any("error", err))
		return
	}

	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, clientSendBuffer),
		Room: roomID,
	}
	if !h.hub.Subscribe(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("websocket client subscribed", slog.String("room", roomID))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	hosts := map[string]bool{}
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "" || origin == "*" {
			return func(*http.Request) bool { return true }
		}
		hosts[strings.ToLower(strings.TrimRight(origin, "/"))] = true
	}
	if len(hosts) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // не браузер
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return hosts[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}
