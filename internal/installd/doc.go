/*
Package installd performs the privileged filesystem side of install,
uninstall, and cache management.

It is the trust boundary of the service: every operation takes
already-validated plain identifiers, never archive paths or
user-controlled JSON. Operations create and remove bundle code and
per-user data trees across encryption-level domains, assign ownership
and privilege labels, extract module archives, and account disk usage
as the five-element stats vector (code, local data, distributed files,
database, cache).

CreateBundleDataDir deliberately performs no rollback when a later step
fails; the recovery pass at service start reconciles partially-created
trees.
*/
package installd
