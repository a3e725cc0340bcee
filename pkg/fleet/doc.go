/*
Package fleet implements the Deployment Manager (C7): the single writer
of replica state across every cluster. It owns the instance_id ->
ReplicaRecord map and the read-only Cluster Descriptor list. ScaleTo adds
replicas through pkg/deploy's Executor and retires them over pkg/shell;
replicas deployed by the Control API's /deploy handler, which calls the
Executor itself, join the map through RegisterExternal.
*/
package fleet
