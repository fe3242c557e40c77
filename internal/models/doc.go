// package models defines the data model for the dojotap training logger.
//
// Shapes mirror the upstream ChessDojo API aggregate ("bootstrap") plus the
// locally owned preference and pin structures that sync back to the server
// under an optimistic version stamp.
package models
