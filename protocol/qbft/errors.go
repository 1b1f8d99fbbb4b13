package qbft

import "errors"

var (
	ErrSlotMismatch      = errors.New("candidate slot does not match duty")
	ErrCommitteeMismatch = errors.New("candidate committee does not match duty")
	ErrProposerMismatch  = errors.New("candidate proposer does not match duty")

	ErrInstanceRunning = errors.New("consensus instance already running")
)
