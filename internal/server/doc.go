// Package server implements the HTTP and WebSocket transport for the channel
// chat service.
//
// A ChatServer accepts WebSocket connections and gives each one a Client with
// its own read and write pumps. Requests are decoded one at a time and routed
// through an operation table; join, message and messages only run after the
// session attached to the request has been checked against the user
// directory. Message events reach other channel members through the Hub,
// which maps connection ids to live sockets.
//
// The implementation is organized into specialized files for configuration, hub
// management, clients, dispatching, routing, and HTTP handlers.
package server
