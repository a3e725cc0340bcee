/*
Package fleetctl wires C1–C11 into one running process: it owns the
request queue, the fleet controller, the load-balancing strategy, the
autoscaler, the dispatcher pool, and the Control API, built from a single
operator configuration file.
*/
package fleetctl
