package survey

import "errors"

// ErrNotFound is returned (wrapped) by record sources for unknown ids.
var ErrNotFound = errors.New("survey: record not found")
