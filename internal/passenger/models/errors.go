package models

import "errors"

var errInvalidWindow = errors.New("season ticket valid-to precedes valid-from")
