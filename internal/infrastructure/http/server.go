// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xcro3dile/readaloud-go/internal/domain/entities"
	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
	"github.com/0xcro3dile/readaloud-go/internal/domain/usecases"
)

const (
	userHeader  = "X-User-ID"
	defaultUser = "local"

	pingInterval = 50 * time.Second
	writeWait    = 10 * time.Second
	readWait     = 60 * time.Second
)

// assetSource is implemented by players that keep the loaded audio.
type assetSource interface {
	Asset() (*entities.NarrationResult, bool)
}

// audioClock is implemented by players that expose their playback position.
type audioClock interface {
	Position() time.Duration
	Duration() time.Duration
}

// Server is the HTTP server for the narration API.
type Server struct {
	manager   *usecases.SessionManager
	documents ports.DocumentStore
	notes     *usecases.NotesUseCase
	settings  *usecases.SettingsUseCase
	provider  string
	addr      string
	upgrader  websocket.Upgrader
}

// NewServer creates a new HTTP server.
func NewServer(
	manager *usecases.SessionManager,
	documents ports.DocumentStore,
	notes *usecases.NotesUseCase,
	settings *usecases.SettingsUseCase,
	provider string,
	addr string,
) *Server {
	return &Server{
		manager:   manager,
		documents: documents,
		notes:     notes,
		settings:  settings,
		provider:  provider,
		addr:      addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routed API with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("GET /api/documents/{id}", s.handleGetDocument)
	mux.HandleFunc("POST /api/documents/{id}/play", s.handlePlay)
	mux.HandleFunc("POST /api/documents/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /api/documents/{id}/stop", s.handleStop)
	mux.HandleFunc("POST /api/documents/{id}/reset", s.handleReset)
	mux.HandleFunc("POST /api/documents/{id}/seek", s.handleSeek)
	mux.HandleFunc("POST /api/documents/{id}/page", s.handlePage)
	mux.HandleFunc("GET /api/documents/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /api/documents/{id}/audio", s.handleAudio)
	mux.HandleFunc("GET /api/documents/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /api/documents/{id}/notes", s.handleListNotes)
	mux.HandleFunc("POST /api/documents/{id}/notes", s.handleAddNote)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)

	return corsMiddleware(loggingMiddleware(mux))
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// Play blocks until synthesis finishes.
		WriteTimeout: 300 * time.Second,
	}

	log.Printf("[INFO] ReadAloud server starting on %s (provider: %s)", s.addr, s.provider)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": s.provider,
		"sessions": s.manager.Len(),
	})
}

type documentSummary struct {
	ID               string                   `json:"id"`
	Name             string                   `json:"name"`
	WordCount        int                      `json:"wordCount"`
	EstimatedMinutes int                      `json:"estimatedMinutes"`
	Suggestion       usecases.SpeedSuggestion `json:"suggestion"`
	UpdatedAt        time.Time                `json:"updatedAt"`
}

type documentDetail struct {
	documentSummary
	Content      string `json:"content"`
	WordsPerLine int    `json:"wordsPerLine"`
	LinesPerView int    `json:"linesPerView"`
}

func summarize(d *entities.Document) documentSummary {
	n := d.WordCount()
	return documentSummary{
		ID:               d.ID,
		Name:             d.Name,
		WordCount:        n,
		EstimatedMinutes: usecases.EstimatedMinutes(n),
		Suggestion:       usecases.SuggestSpeed(n),
		UpdatedAt:        d.UpdatedAt,
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]documentSummary, 0, len(docs))
	for i := range docs {
		out = append(out, summarize(&docs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentDetail{
		documentSummary: summarize(doc),
		Content:         doc.Content,
		WordsPerLine:    usecases.WordsPerLine,
		LinesPerView:    usecases.LinesPerView,
	})
}

// controller resolves the caller's playback controller for the {id} document.
func (s *Server) controller(r *http.Request) (*usecases.PlaybackController, error) {
	return s.manager.Controller(r.Context(), userID(r), r.PathValue("id"))
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ctrl.Play(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Status())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ctrl.Pause(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := ctrl.Stop(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctrl.Reset()
	writeJSON(w, http.StatusOK, ctrl.Status())
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position *int `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil {
		http.Error(w, "position required", http.StatusBadRequest)
		return
	}
	ctrl, err := s.controller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctrl.Seek(*req.Position)
	writeJSON(w, http.StatusOK, ctrl.Status())
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	var forward bool
	switch req.Direction {
	case "next":
		forward = true
	case "previous":
	default:
		http.Error(w, "direction must be next or previous", http.StatusBadRequest)
		return
	}
	ctrl, err := s.controller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctrl.Page(forward)
	writeJSON(w, http.StatusOK, ctrl.Status())
}

type statusResponse struct {
	usecases.PlaybackStatus
	AudioPosition float64 `json:"audioPosition"` // seconds
	AudioDuration float64 `json:"audioDuration"` // seconds
}

// handleStatus reports the controller state plus the audio clock, if any.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := statusResponse{PlaybackStatus: ctrl.Status()}
	if player, ok := s.manager.Player(userID(r), r.PathValue("id")); ok {
		if clock, ok := player.(audioClock); ok {
			resp.AudioPosition = clock.Position().Seconds()
			resp.AudioDuration = clock.Duration().Seconds()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAudio serves the synthesized asset of the caller's session.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	player, ok := s.manager.Player(userID(r), r.PathValue("id"))
	if !ok {
		http.Error(w, "no active session", http.StatusNotFound)
		return
	}
	src, ok := player.(assetSource)
	if !ok {
		http.Error(w, "audio not available", http.StatusNotFound)
		return
	}
	asset, ok := src.Asset()
	if !ok {
		http.Error(w, "audio not synthesized yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, "narration.mp3", time.Time{}, bytes.NewReader(asset.Audio))
}

type controlMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

// handleEvents streams cursor updates over a websocket. Clients may send
// {"type":"control","action":"play|pause|stop|reset"} on the same connection.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.controller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WARN] websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.readPump(ctx, cancel, conn, ctrl)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case u, ok := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := conn.WriteJSON(u); err != nil {
				log.Printf("[WARN] websocket write: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, ctrl *usecases.PlaybackController) {
	defer cancel()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WARN] websocket read: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readWait))
		if msg.Type != "control" {
			continue
		}

		var err error
		switch msg.Action {
		case "play":
			// Play blocks while audio is synthesized; keep reading meanwhile.
			go func() {
				if err := ctrl.Play(ctx); err != nil {
					log.Printf("[WARN] websocket play: %v", err)
				}
			}()
		case "pause":
			err = ctrl.Pause()
		case "stop":
			err = ctrl.Stop()
		case "reset":
			ctrl.Reset()
		default:
			log.Printf("[WARN] unknown control action %q", msg.Action)
		}
		if err != nil {
			log.Printf("[WARN] websocket %s: %v", msg.Action, err)
		}
	}
}

type noteResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp int       `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}

func toNoteResponse(n entities.Note) noteResponse {
	return noteResponse{ID: n.ID, Text: n.Text, Timestamp: n.Timestamp, CreatedAt: n.CreatedAt}
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.notes.List(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]noteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, toNoteResponse(n))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAddNote stores a note at the given word index, or at the current
// cursor when none is given. The index is clamped into the document.
func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text      string `json:"text"`
		Timestamp *int   `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	ctrl, err := s.controller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	st := ctrl.Status()
	at := st.Cursor
	if req.Timestamp != nil {
		at = *req.Timestamp
	}

	note, err := s.notes.Add(r.Context(), userID(r), r.PathValue("id"), req.Text, at, st.WordCount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNoteResponse(*note))
}

type settingsResponse struct {
	Speed     float64 `json:"speed"`
	Voice     string  `json:"voice"`
	FocusMode bool    `json:"focusMode"`
}

func toSettingsResponse(s entities.NarrationSettings) settingsResponse {
	return settingsResponse{Speed: s.Speed, Voice: s.Voice, FocusMode: s.FocusMode}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed     *float64 `json:"speed"`
		Voice     *string  `json:"voice"`
		FocusMode *bool    `json:"focusMode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	user := userID(r)
	settings, err := s.settings.Update(r.Context(), user, usecases.SettingsUpdate{
		Speed:     req.Speed,
		Voice:     req.Voice,
		FocusMode: req.FocusMode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.manager.ApplySettings(user, settings)
	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

func userID(r *http.Request) string {
	if u := r.Header.Get(userHeader); u != "" {
		return u
	}
	return defaultUser
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ports.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, usecases.ErrInvalidTransition), errors.Is(err, usecases.ErrInterrupted):
		status = http.StatusConflict
	case errors.Is(err, usecases.ErrEmptyContent):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, usecases.ErrEmptyNote), errors.Is(err, usecases.ErrInvalidSettings):
		status = http.StatusBadRequest
	case errors.Is(err, usecases.ErrFallbackFailed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Printf("[ERROR] %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+userHeader)
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
