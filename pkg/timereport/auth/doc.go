// Package auth implements the browser-delegated login handshake: a one-shot
// loopback callback server, an anti-forgery state value, and the flow that
// races the callback against operator cancellation and a timeout before
// committing the resulting credential.
package auth
