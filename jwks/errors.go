/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package jwks

import (
	"errors"
	"fmt"
)

// ErrKeySetTooLarge is returned when the JWKS document exceeds MaxKeySetSize.
var ErrKeySetTooLarge = errors.New("JWKS document is too large")

// ErrKeySetMalformed is returned when the JWKS document is not a JSON object with the "keys" array.
var ErrKeySetMalformed = errors.New("JWKS document is malformed")

// KeySetFetchError is an error that may occur during fetching and decoding of the JWKS document.
type KeySetFetchError struct {
	URL   string
	Inner error
}

func (e *KeySetFetchError) Error() string {
	return fmt.Sprintf("error while fetching JWKS (URL: %q): %s", e.URL, e.Inner.Error())
}

func (e *KeySetFetchError) Unwrap() error {
	return e.Inner
}

// UnexpectedStatusCodeError is an error that occurs when the JWKS endpoint responds with non-200 status code.
type UnexpectedStatusCodeError struct {
	StatusCode int
}

func (e *UnexpectedStatusCodeError) Error() string {
	return fmt.Sprintf("unexpected HTTP status code %d", e.StatusCode)
}
