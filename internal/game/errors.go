package game

import "errors"

// Game errors
var (
	ErrUnknownEntity  = errors.New("unknown country")
	ErrGameEnded      = errors.New("game finished")
	ErrNoTarget       = errors.New("puzzle target not available")
	ErrReportDelivery = errors.New("score report delivery failed")
)
