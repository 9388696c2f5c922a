// Package types provides shared data structures for the bundle manager
// service core.
//
// This package defines the types used across all service components,
// ensuring type safety and consistent data structures.
//
// Core Types:
//   - UserState: per-(bundle, user) installation state
//   - SandboxPersistentInfo: sandboxed instance bookkeeping
//   - InstallMark: transient in-progress install marker
//   - Want: request shape for ability/extension matching
//   - BundleInfo, AbilityInfo, ExtensionInfo: caller-facing projections
//
// Error Handling:
//   - Sentinel errors for the core taxonomy (ErrBadProfile, ...)
//   - ErrCode / CodeOf: numeric result codes for the operation surface
package types
