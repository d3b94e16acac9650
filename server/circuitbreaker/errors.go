package circuitbreaker

import "errors"

// ErrOpen is returned when the circuit breaker refuses a call.
var ErrOpen = errors.New("circuit breaker is open")
