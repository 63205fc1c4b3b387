package core

import (
	"github.com/pkg/errors"
)

var (
	// ErrUnauthorized caller lacks the owner or holder role
	ErrUnauthorized = errors.New("unauthorized")

	// ErrWrongPhase operation is not allowed in the current phase
	ErrWrongPhase = errors.New("wrong phase")

	// ErrInvalidProposal unknown id, tap not strictly increasing or deadline already past
	ErrInvalidProposal = errors.New("invalid proposal")

	ErrVotingClosed     = errors.New("voting closed")
	ErrAlreadyVoted     = errors.New("already voted")
	ErrAlreadyExecuted  = errors.New("already executed")
	ErrNotYetExecutable = errors.New("not yet executable")

	// ErrTransferFailure the underlying fund movement failed
	ErrTransferFailure = errors.New("transfer failure")

	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
)
