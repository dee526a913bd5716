package annotation

import "errors"

var ErrMalformed = errors.New("malformed annotation")
