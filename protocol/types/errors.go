package types

import "errors"

var (
	// ErrSlashingViolation is returned when signing a value would double-sign. It is never retried.
	ErrSlashingViolation = errors.New("slashing violation")
	// ErrConsensusTimeout is returned when no value was decided within the round budget.
	ErrConsensusTimeout = errors.New("consensus timeout")
	// ErrInsufficientShares is returned when fewer than threshold distinct shares are available.
	ErrInsufficientShares = errors.New("insufficient shares")
	// ErrSigningUnavailable is returned when the signing oracle could not produce a share.
	ErrSigningUnavailable = errors.New("signing unavailable")

	ErrDutyInFlight   = errors.New("duty already in flight")
	ErrDutySuperseded = errors.New("duty superseded")
)
