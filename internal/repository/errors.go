package repository

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrDuplicatePending = errors.New("pending session already exists for this mentor and mentee")
	ErrStaleStatus      = errors.New("session status changed concurrently")
	ErrNotMentee        = errors.New("user is not a mentee")
)

const (
	constraintUsersEmail     = "users_email_key"
	constraintOnePendingPair = "sessions_one_pending_per_pair"
)
