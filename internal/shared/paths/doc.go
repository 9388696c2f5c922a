// Package paths provides the standardized on-disk layout of installed
// bundles.
//
// All components must derive install locations from this package so the
// installer, the stats accounting, and the recovery pass agree on the same
// tree.
//
// # Directory Structure
//
//	/data/app/
//	  ├── el1/bundle/public/<bundleName>/<module>/   (installed code)
//	  ├── el1/<userId>/base/<bundleName>/            (boot-available data)
//	  ├── el2/<userId>/base/<bundleName>/            (credential-bound data)
//	  │     ├── cache/ files/ temp/ preferences/ haps/
//	  │     └── el3/base/  el4/base/
//	  └── <el>/<userId>/database/<bundleName>/       (per-bundle databases)
//	/data/service/el1/public/bms/                    (record + state stores)
//	/mnt/hmdfs/<userId>/{account,non_account}/data/  (distributed files)
//
// # Usage
//
//	import "github.com/GriffinCanCode/BundleOS/backend/internal/shared/paths"
//
//	code := paths.ModuleDir(cfg.CodeRoot, "com.example.app", "entry")
//	data := paths.BundleDataDir(cfg.DataRoot, paths.EL2, 100, "com.example.app")
package paths
