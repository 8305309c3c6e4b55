/*
handlers.go - HTTP API handlers for the reputation engine

PURPOSE:
  Exposes the community gamification engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Users:
    POST   /api/users                       Register user
    GET    /api/users                       List users with totals
    GET    /api/users/{id}                  Get user, totals, badges

  Questions:
    POST   /api/questions                   Ask question
    GET    /api/questions                   List questions
    GET    /api/questions/{id}              Get question with answers
    DELETE /api/questions/{id}              Delete own question
    POST   /api/questions/{id}/vote         Vote on question
    POST   /api/questions/{id}/answers      Post answer
    POST   /api/questions/{id}/accept/{aid} Accept answer

  Answers:
    POST   /api/answers/{id}/vote           Vote on answer
    DELETE /api/answers/{id}                Delete own answer

  Badges:
    GET    /api/badges                      Badge catalog

  Admin:
    POST   /api/admin/reconcile             Run reconciliation job

AUTHENTICATION:
  Mutating endpoints identify the caller through the X-Actor-ID header.
  A missing header is 401. This is identification, not authentication;
  a real deployment puts a gateway in front.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing actor header
  - 403: Actor not allowed (self-vote, not the author)
  - 404: User/question/answer not found
  - 500: Storage or internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/signalpost/reputation-engine/forum"
	"github.com/signalpost/reputation-engine/gamify"
	"github.com/signalpost/reputation-engine/reconcile"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      forum.Store
	Content    *forum.ContentService
	Votes      *forum.VoteService
	Accepts    *forum.AcceptService
	Reconciler *reconcile.Job
	Log        *zap.Logger
}

// NewHandler wires the services onto one handler.
func NewHandler(store forum.Store, content *forum.ContentService, votes *forum.VoteService,
	accepts *forum.AcceptService, reconciler *reconcile.Job, log *zap.Logger) *Handler {
	return &Handler{
		Store:      store,
		Content:    content,
		Votes:      votes,
		Accepts:    accepts,
		Reconciler: reconciler,
		Log:        log,
	}
}

// actor pulls the caller's identity from the X-Actor-ID header.
// Returns false (after writing 401) when the header is absent.
func actor(w http.ResponseWriter, r *http.Request) (gamify.UserID, bool) {
	id := r.Header.Get("X-Actor-ID")
	if id == "" {
		writeError(w, http.StatusUnauthorized, "X-Actor-ID header required", nil)
		return "", false
	}
	return gamify.UserID(id), true
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// CreateUser registers a new user with zero totals.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if req.Handle == "" {
		writeError(w, http.StatusBadRequest, "handle is required", nil)
		return
	}
	// Uniqueness of the handle is enforced by the store, so concurrent
	// registrations race safely: the loser gets InvalidArgument here
	// instead of an IO error from a violated constraint.
	u := gamify.NewUser(req.Handle)
	if err := h.Store.SaveUser(r.Context(), u); err != nil {
		h.writeDomainError(w, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// ListUsers returns all users ordered by ID.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list users", err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUser returns one user with totals and badges.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Store.GetUser(r.Context(), gamify.UserID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

// =============================================================================
// QUESTION HANDLERS
// =============================================================================

// AskQuestion creates a question for the acting user.
func (h *Handler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	var req AskQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	q, err := h.Content.AskQuestion(r.Context(), act, req.Title, req.Body, req.Tags)
	if err != nil {
		h.writeDomainError(w, "Failed to create question", err)
		return
	}
	writeJSON(w, http.StatusCreated, toQuestionDTO(q))
}

// ListQuestions returns all questions, oldest first.
func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.Store.ListQuestions(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list questions", err)
		return
	}
	dtos := make([]QuestionDTO, len(questions))
	for i, q := range questions {
		dtos[i] = toQuestionDTO(q)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetQuestion returns one question with its answers.
func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id := forum.QuestionID(chi.URLParam(r, "id"))
	q, err := h.Store.GetQuestion(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get question", err)
		return
	}
	answers, err := h.Store.AnswersByQuestion(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to load answers", err)
		return
	}

	dto := toQuestionDTO(q)
	dto.Answers = make([]AnswerDTO, len(answers))
	for i, a := range answers {
		dto.Answers[i] = toAnswerDTO(a)
	}
	writeJSON(w, http.StatusOK, dto)
}

// DeleteQuestion removes the actor's own question and its answers.
func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.Content.DeleteQuestion(r.Context(), act, forum.QuestionID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, "Failed to delete question", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VoteQuestion applies one vote action on a question.
func (h *Handler) VoteQuestion(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	action, err := forum.ParseVoteAction(req.Action)
	if err != nil {
		h.writeDomainError(w, "Invalid vote action", err)
		return
	}

	q, err := h.Votes.VoteQuestion(r.Context(), act, forum.QuestionID(chi.URLParam(r, "id")), action)
	if err != nil {
		h.writeDomainError(w, "Failed to vote", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuestionDTO(q))
}

// AcceptAnswer marks an answer as accepted on the actor's question.
func (h *Handler) AcceptAnswer(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	q, err := h.Accepts.Accept(r.Context(), act,
		forum.QuestionID(chi.URLParam(r, "id")),
		forum.AnswerID(chi.URLParam(r, "answerID")))
	if err != nil {
		h.writeDomainError(w, "Failed to accept answer", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuestionDTO(q))
}

// =============================================================================
// ANSWER HANDLERS
// =============================================================================

// PostAnswer creates an answer on a question for the acting user.
func (h *Handler) PostAnswer(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	var req PostAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	a, err := h.Content.PostAnswer(r.Context(), act, forum.QuestionID(chi.URLParam(r, "id")), req.Body)
	if err != nil {
		h.writeDomainError(w, "Failed to post answer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAnswerDTO(a))
}

// VoteAnswer applies one vote action on an answer.
func (h *Handler) VoteAnswer(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	action, err := forum.ParseVoteAction(req.Action)
	if err != nil {
		h.writeDomainError(w, "Invalid vote action", err)
		return
	}

	a, err := h.Votes.VoteAnswer(r.Context(), act, forum.AnswerID(chi.URLParam(r, "id")), action)
	if err != nil {
		h.writeDomainError(w, "Failed to vote", err)
		return
	}
	writeJSON(w, http.StatusOK, toAnswerDTO(a))
}

// DeleteAnswer removes the actor's own answer.
func (h *Handler) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.Content.DeleteAnswer(r.Context(), act, forum.AnswerID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, "Failed to delete answer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BADGES AND ADMIN
// =============================================================================

// ListBadges returns the full badge catalog in ascending threshold order.
func (h *Handler) ListBadges(w http.ResponseWriter, r *http.Request) {
	catalog := gamify.Catalog()
	dtos := make([]BadgeDTO, len(catalog))
	for i, b := range catalog {
		dtos[i] = BadgeDTO{Name: b.Name, Description: b.Description, Threshold: b.Threshold}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunReconciliation triggers a full reconciliation pass.
func (h *Handler) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reconciler.Run(r.Context())
	if err != nil {
		h.writeDomainError(w, "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case gamify.IsInvalidArgument(err):
		writeError(w, http.StatusBadRequest, message, err)
	case gamify.IsForbidden(err):
		writeError(w, http.StatusForbidden, message, err)
	case gamify.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		h.Log.Error("request failed", zap.String("message", message), zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
