/*
Package types defines the data model shared across the deployer and fleet
controller: Profile Records, Shell Credentials, Model References, Deployment
Specs, Replica Records, Cluster Descriptors, Queued Requests, Port Leases,
and the error taxonomy they all raise.

Sum types that the source language expressed dynamically are modeled as Go
structs with an unexported discriminant and boundary constructors:
ShellCredentials enforces "password XOR key" in NewPasswordCredentials and
NewKeyCredentials; ModelRef enforces "local path XOR hosted repo" in
ParseModelRef. Neither type is constructible in an invalid state.
*/
package types
