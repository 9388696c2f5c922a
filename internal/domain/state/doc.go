/*
Package state persists the bundle database.

Two independent JSON-file stores back the in-memory aggregates: the
record store maps bundle name to the serialized bundle record, and the
user-state store maps <bundleName>_<userId> to per-user installation
state. Both are loaded wholesale at service start and rewritten
wholesale (through a temp file plus rename) on every mutation, each
behind its own mutex. The two stores may be accessed concurrently with
each other.
*/
package state
