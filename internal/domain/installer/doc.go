/*
Package installer orchestrates package install, upgrade, and uninstall.

An install parses the archive's manifest, extracts the module into a
temp directory that is renamed into place, builds the per-user data
tree through the privileged daemon, and folds the parsed module into
the bundle aggregate. The bundle record carries an install mark across
every step, so a crash mid-operation is visible to the Recover pass at
next start. Version downgrades are refused; upgrades replace the module
wholesale.

The Seeder installs system packages named in a YAML preinstall list at
boot, marking them preinstalled so they are never removable.
*/
package installer
