package brackets

import "errors"

var (
	ErrInvalidSeedCount           = errors.New("tournament requires exactly 16 seeded items")
	ErrDuplicateSeed              = errors.New("item seeded more than once")
	ErrInvalidBracketSize         = errors.New("bracket size must be a power of two")
	ErrMatchNotFound              = errors.New("match not found")
	ErrMatchAlreadyCompleted      = errors.New("match already completed")
	ErrNoPlayableMatch            = errors.New("match is not playable yet")
	ErrTournamentAlreadyCompleted = errors.New("tournament already completed")
	ErrInvalidWinner              = errors.New("winner is not a participant of the match")
	ErrInvalidTopology            = errors.New("bracket topology is invalid")
)
