// Package portalloc finds free TCP ports locally and on remote hosts.
package portalloc
