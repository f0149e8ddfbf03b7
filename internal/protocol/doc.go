// Package protocol defines the JSON envelope exchanged over hub connections.
//
// Envelopes are UTF-8 text frames. The server stamps clientId and an ISO 8601
// timestamp on everything it sends; inbound values for those fields are ignored.
package protocol
