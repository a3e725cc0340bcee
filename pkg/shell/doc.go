/*
Package shell opens an authenticated session to a remote host and exposes
the minimal capability every upstream component needs: run a command,
upload a file, forward a local port, close. Implementations are pluggable
(see the Shell interface) so tests can substitute a local fake instead of
dialing a real host.
*/
package shell
