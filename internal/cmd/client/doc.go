// Package client provides the read-only commands that query a running
// multiflow status endpoint over HTTP.
//
// The base URL is supplied by the embedding application through a
// BaseURLFunc. The standalone binary reads MULTIFLOW_HTTP and falls back
// to http://127.0.0.1:9100.
//
// Usage
//
//	multiflow shell --status-addr 127.0.0.1:9100
//
//	# from another terminal
//	multiflow status
//	multiflow status --filter 'unread > 0' -o yaml
//	multiflow status --minor 2 -o json
//	multiflow health
package client
