/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package idptest provides helper primitives and functions required for
// testing signing and key generation and a simple HTTP server
// which serves JWKS the way the Cognito user pool does.
package idptest
