// Package relay implements the room-scoped ephemeral file relay:
// rooms identified by short codes, files uploaded through external
// storage providers and announced to every room member, burn policies
// that destroy a link after N downloads or a time window from first
// access, and a background sweep for provider-declared expiries. It
// also carries the websocket session protocol and the HTTP surface
// (health, metrics) around the core.
package relay
