package domain

import "errors"

// ErrUnreachable marks a remote call that failed at the transport layer:
// connection refused, timeout, or the instance answering with a server error.
// The coordinator treats it as "cannot confirm" and moves on to the next member.
var ErrUnreachable = errors.New("member unreachable")
