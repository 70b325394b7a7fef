// Package middleware provides HTTP middleware for the file recorder API.
//
// Requests are logged in W3C Extended Log Format with control characters
// stripped from client-supplied fields. The metrics middleware records
// request counts and latency labelled by the matched route template, so
// folder paths in query strings never reach Prometheus labels.
package middleware
