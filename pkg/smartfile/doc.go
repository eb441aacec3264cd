// Package smartfile is a client for the SmartFile file-storage REST API
// (https://app.smartfile.com/api/2).
//
// A Client signs every request with either HTTP Basic credentials (NewBasic)
// or a PLAINTEXT OAuth 1.0a access token (NewOAuth). Requests go through the
// standard net/http client; responses are classified per HTTP method and
// non-success statuses surface as *ResponseError carrying the message the
// API reported. Connection failures surface as *TransportError, and OAuth
// handshake misuse or rejection as *AuthError.
//
// The generic Get, Post, Put and Delete methods cover the whole API. Ping,
// Info, Mkdir, Upload, Download, Move, Remove and CreateUser wrap the
// endpoints the SmartFile examples use most.
package smartfile
