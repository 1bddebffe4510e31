// Package blob stores article payloads outside the document store and hands
// back locators that resolve to them.
package blob

import "errors"

const DefaultContainer = "article"

var (
	ErrNotFound       = errors.New("blob not found")
	ErrInvalidLocator = errors.New("invalid blob locator")
)
