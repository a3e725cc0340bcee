/*
Package dispatcher implements the Dispatcher (C10): a pool of worker
goroutines that drain the Request Queue, acquire a replica endpoint from
the Load Balancer, forward the request over HTTP, and release the
endpoint. Workers share one queue.Queue and one balancer.Strategy.
*/
package dispatcher
