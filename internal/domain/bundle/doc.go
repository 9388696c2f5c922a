/*
Package bundle owns the canonical per-bundle aggregate.

A Record merges every installed module's parsed manifest into one
structure: identity and versioning, install-classification flags,
native-library layout, the module map, per-user state, and sandbox
clone bookkeeping. Abilities, extensions, and skills live inside the
module that declares them, so replacing a module on upgrade swaps the
whole dependent set in one step with no cascade bookkeeping.

DataMgr is the service-wide registry of Records. It serializes access
behind one RWMutex, answers every read query (bundle info projection,
skill-based ability matching, enable state), and writes through to the
record and user-state stores on each mutation.
*/
package bundle
