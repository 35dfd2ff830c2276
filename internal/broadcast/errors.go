package broadcast

import "errors"

// ErrHubFull is returned when the hub already holds the maximum number of
// clients.
var ErrHubFull = errors.New("broadcast hub full")
