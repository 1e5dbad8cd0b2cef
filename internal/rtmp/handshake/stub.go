package handshake

import "errors"

// ErrNotImplemented reports a handshake operation this package does not
// implement. ServerHandshake (server.go) and ClientHandshake (client.go) do
// not return it.
var ErrNotImplemented = errors.New("handshake not implemented")
