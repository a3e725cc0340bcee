/*
Package api implements the Control API (C11): the HTTP surface an
operator or scheduler drives the fleet through.

Routes:

	POST /enqueue      queue an inference request, returns a request id
	GET  /status/{id}  stub status lookup (no per-item persistence)
	GET  /stats        queue depth and active replica endpoints
	POST /deploy       run a Deployment Spec through C5, streaming stage
	                   progress lines to the response as they occur
	GET  /health       ok once every collaborator is wired
	GET  /metrics      Prometheus exposition

/status/{id} needs a path parameter the stdlib ServeMux of this module's
vintage can't extract on its own, so routing is built on gorilla/mux
rather than http.ServeMux.
*/
package api
