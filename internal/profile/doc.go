/*
Package profile parses package manifests.

Two incompatible schema generations exist: the legacy config.json
(app + deviceConfig + module in one object) and the current module.json
(app + module, with per-device override blocks nested under app). The
parser selects the variant by which manifest file the archive carries
and normalizes both into the same one-module bundle record.

Parsing is all-or-nothing: malformed JSON or a violated required-field
rule aborts with the first failure; absent optional fields get
variant-specific defaults in a single finalize step. Optional manifest
fields are decoded through pointers so an unset boolean stays
distinguishable from an explicit false until defaults apply.
*/
package profile
