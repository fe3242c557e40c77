// package dojo implements the client for the upstream ChessDojo REST API.
//
// The upstream is consumed as a black box returning JSON. The package owns
// wire-level tolerance (field aliases, loose number/bool encodings), the
// assembly of the aggregate bootstrap snapshot, and the classification of
// every failure into the Timeout / Auth / Conflict / Network taxonomy that
// the loader and sync engine branch on.
package dojo
