package compensation

import "errors"

// Sentinel kinds for compensation errors.
var (
	ErrInvalidSettings  = errors.New("invalid company settings")
	ErrInvalidMember    = errors.New("invalid roster member")
	ErrDuplicatePerson  = errors.New("duplicate person")
	ErrUndefinedGrossUp = errors.New("bonus gross-up undefined at 100% tax")
)
