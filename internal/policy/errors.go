package policy

import "errors"

// ErrInvalidPolicy indicates a policy document failed to parse or validate.
var ErrInvalidPolicy = errors.New("invalid policy")
