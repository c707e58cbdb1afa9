/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package idputil provides utilities for working with identity providers.
// It is used in the internal code and not exposed to the public API.
package idputil
