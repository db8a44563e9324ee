// Package middleware groups the HTTP middleware used by the server:
// ray-id request correlation and API key authentication. Each middleware
// lives in its own subpackage and follows the standard Fiber handler shape.
package middleware
