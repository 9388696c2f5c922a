/*
Package http exposes the bundle manager over a REST surface.

Handlers are thin: they bind the request, call into the data manager or
installer, and map domain error chains to HTTP status codes. Every
response carries a success flag plus either the payload or the stable
error code label.
*/
package http
