/*
Package balancer implements the Load Balancer (C8): three endpoint
selection strategies over a pkg/fleet snapshot, chosen at startup and
held fixed for the process lifetime.
*/
package balancer
