package profile

import "errors"

var (
	ErrNoProfile     = errors.New("no profile saved")
	ErrMissingPseudo = errors.New("pseudo cannot be empty")
	ErrEmptyPhoto    = errors.New("photo cannot be empty")
)
