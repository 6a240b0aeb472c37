package attachment

import "errors"

var ErrEmptyBlob = errors.New("attachment payload cannot be empty")
