// Package api handles incoming HTTP requests, request validation and
// response formatting. It adapts the JSON surface to the task, strategy and
// aggregation services; every route acts on behalf of the user identified
// by the bearer token.
package api
