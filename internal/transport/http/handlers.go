package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"exam-session-service/internal/app"
	"exam-session-service/internal/domain"
)

// Handler exposes the session use cases over REST.
type Handler struct {
	service *app.SessionService
}

func NewHandler(service *app.SessionService) *Handler {
	return &Handler{service: service}
}

// Register wires the routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /assessments/{assessmentID}/start", h.handleStart)
	mux.HandleFunc("POST /assessments/{assessmentID}/submit", h.handleSubmit)
	mux.HandleFunc("POST /assessments/{assessmentID}/warnings", h.handleAppendWarning)
	mux.HandleFunc("GET /assessments/{assessmentID}/leaderboard", h.handleLeaderboard)
}

type startRequest struct {
	ParticipantID string `json:"participantId"`
}

type startResponse struct {
	TimeLeftSeconds int64 `json:"timeLeftSeconds"`
	IsRejoin        bool  `json:"isRejoin"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, "missing participantId")
		return
	}
	timeLeft, isRejoin, err := h.service.Start(r.Context(), r.PathValue("assessmentID"), req.ParticipantID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{TimeLeftSeconds: timeLeft, IsRejoin: isRejoin})
}

type submitRequest struct {
	ParticipantID    string         `json:"participantId"`
	Answers          map[string]int `json:"answers"`
	TimeTakenSeconds int64          `json:"timeTakenSeconds"`
}

type submitResponse struct {
	Score float64 `json:"score"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, "missing participantId")
		return
	}
	for questionID, option := range req.Answers {
		if option < 0 || option > 3 {
			writeError(w, http.StatusBadRequest, "invalid option index for question "+questionID)
			return
		}
	}
	score, err := h.service.Submit(r.Context(), r.PathValue("assessmentID"), req.ParticipantID, req.Answers, req.TimeTakenSeconds)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Score: score})
}

type warningRequest struct {
	ParticipantID string `json:"participantId"`
	Label         string `json:"label"`
}

func (h *Handler) handleAppendWarning(w http.ResponseWriter, r *http.Request) {
	var req warningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" || req.Label == "" {
		writeError(w, http.StatusBadRequest, "missing participantId or label")
		return
	}
	if err := h.service.AppendWarning(r.Context(), r.PathValue("assessmentID"), req.ParticipantID, req.Label); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	lb, err := h.service.BuildLeaderboard(r.Context(), r.PathValue("assessmentID"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

type errorResponse struct {
	Message string `json:"message"`
}

// writeServiceError maps the domain error taxonomy onto HTTP status codes.
// Policy violations carry their own user-facing message.
func writeServiceError(w http.ResponseWriter, err error) {
	var tooEarly *domain.TooEarlyError
	switch {
	case errors.Is(err, domain.ErrAssessmentNotFound), errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadySubmitted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &tooEarly), errors.Is(err, domain.ErrCannotVerifyStartTime):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
