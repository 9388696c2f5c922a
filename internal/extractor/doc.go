/*
Package extractor reads bundle package archives.

A package is a zip container carrying the manifest (config.json or
module.json) plus code and native libraries. The extractor sniffs the
container type before opening, exposes probes for manifest and libs/
entries, and unpacks either the full archive or a single subtree into a
module directory.
*/
package extractor
