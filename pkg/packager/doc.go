/*
Package packager implements the Image Packager (C4): it assembles a build
context around a model reference and an inference entrypoint, builds a
container image scoped to the target host's platform, and exports it to a
portable tarball for pkg/deploy to transfer.
*/
package packager
