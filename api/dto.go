/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and services, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/signalpost/reputation-engine/forum"
	"github.com/signalpost/reputation-engine/gamify"
)

// =============================================================================
// USERS
// =============================================================================

// CreateUserRequest registers a new community member.
type CreateUserRequest struct {
	Handle string `json:"handle"`
}

// BadgeDTO is one earned (or catalog) badge. Threshold is only set for
// catalog entries; EarnedAt only for badges a user holds.
type BadgeDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Threshold   int    `json:"threshold,omitempty"`
	EarnedAt    string `json:"earned_at,omitempty"`
}

// UserDTO represents a user with totals and badges.
type UserDTO struct {
	ID             string     `json:"id"`
	Handle         string     `json:"handle"`
	Points         int        `json:"points"`
	Reputation     int        `json:"reputation"`
	QuestionsAsked int        `json:"questions_asked"`
	AnswersGiven   int        `json:"answers_given"`
	Badges         []BadgeDTO `json:"badges"`
	CreatedAt      string     `json:"created_at"`
}

func toUserDTO(u *gamify.User) UserDTO {
	badges := make([]BadgeDTO, len(u.Badges))
	for i, b := range u.Badges {
		badges[i] = BadgeDTO{
			Name:        b.Name,
			Description: b.Description,
			EarnedAt:    b.EarnedAt.Format(time.RFC3339),
		}
	}
	return UserDTO{
		ID:             string(u.ID),
		Handle:         u.Handle,
		Points:         u.Points,
		Reputation:     u.Reputation,
		QuestionsAsked: u.QuestionsAsked,
		AnswersGiven:   u.AnswersGiven,
		Badges:         badges,
		CreatedAt:      u.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// QUESTIONS AND ANSWERS
// =============================================================================

// AskQuestionRequest creates a question.
type AskQuestionRequest struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

// PostAnswerRequest creates an answer on a question.
type PostAnswerRequest struct {
	Body string `json:"body"`
}

// VoteRequest carries one vote action: upvote, downvote, or remove.
type VoteRequest struct {
	Action string `json:"action"`
}

// QuestionDTO represents a question in API responses.
type QuestionDTO struct {
	ID             string      `json:"id"`
	Author         string      `json:"author"`
	Title          string      `json:"title"`
	Body           string      `json:"body"`
	Tags           []string    `json:"tags"`
	Upvotes        int         `json:"upvotes"`
	Downvotes      int         `json:"downvotes"`
	Solved         bool        `json:"solved"`
	AcceptedAnswer string      `json:"accepted_answer,omitempty"`
	Answers        []AnswerDTO `json:"answers,omitempty"`
	CreatedAt      string      `json:"created_at"`
}

// AnswerDTO represents an answer in API responses.
type AnswerDTO struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Author     string `json:"author"`
	Body       string `json:"body"`
	Upvotes    int    `json:"upvotes"`
	Downvotes  int    `json:"downvotes"`
	Accepted   bool   `json:"accepted"`
	CreatedAt  string `json:"created_at"`
}

func toQuestionDTO(q *forum.Question) QuestionDTO {
	return QuestionDTO{
		ID:             string(q.ID),
		Author:         string(q.Author),
		Title:          q.Title,
		Body:           q.Body,
		Tags:           q.Tags,
		Upvotes:        q.Votes.Upvotes,
		Downvotes:      q.Votes.Downvotes,
		Solved:         q.Solved,
		AcceptedAnswer: string(q.AcceptedAnswer),
		CreatedAt:      q.CreatedAt.Format(time.RFC3339),
	}
}

func toAnswerDTO(a *forum.Answer) AnswerDTO {
	return AnswerDTO{
		ID:         string(a.ID),
		QuestionID: string(a.QuestionID),
		Author:     string(a.Author),
		Body:       a.Body,
		Upvotes:    a.Votes.Upvotes,
		Downvotes:  a.Votes.Downvotes,
		Accepted:   a.Accepted,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
