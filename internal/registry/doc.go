// Package registry tracks the display clients connected to the wall server
// and the per-module channels multiplexed next to them.
//
// A display client connects on the main websocket and completes a short
// handshake: the server sends "config" and the client answers with
// "config-response" carrying the serialized virtual rectangle it renders.
// Only clients that answer with a well-formed rectangle are registered and
// announced to observers.
//
// A module channel is a separate websocket namespace, "/module<id>", opened
// by server-side module code for the lifetime of that module. Tiles running
// the module connect to it with their module id and rectangle, which lets
// the server address every tile covering part of the wall.
package registry
