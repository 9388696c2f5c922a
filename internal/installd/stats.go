package installd

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"

	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/paths"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

// GetBundleStats accounts the disk usage of one bundle for one user.
// Local data is the per-EL data directories minus the cache subtree.
func (d *Installd) GetBundleStats(bundleName string, userID int32) (stats types.BundleStats, err error) {
	defer func() { d.record("get_bundle_stats", err) }()
	if bundleName == "" || userID < 0 {
		err = fmt.Errorf("%w: bad stats args for %q", types.ErrInstalldParam, bundleName)
		return stats, err
	}

	stats.CodeSize = dirSize(paths.BundleCodeDir(d.cfg.CodeRoot, bundleName))

	var dataSize int64
	for _, el := range []string{paths.EL1, paths.EL2} {
		dataSize += dirSize(paths.BundleDataDir(d.cfg.DataRoot, el, userID, bundleName))
		stats.DatabaseSize += dirSize(paths.DatabaseDir(d.cfg.DataRoot, el, userID, bundleName))
	}
	stats.CacheSize = dirSize(paths.CacheDir(d.cfg.DataRoot, userID, bundleName))
	stats.LocalDataSize = dataSize - stats.CacheSize

	if d.cfg.DistributedFS {
		stats.DistributedFileSize = dirSize(paths.DistributedAccountDir(d.cfg.DistRoot, userID, bundleName)) +
			dirSize(paths.DistributedNonAccountDir(d.cfg.DistRoot, userID, bundleName))
	}
	return stats, nil
}

// dirSize sums file sizes under root. A missing root counts as zero.
func dirSize(root string) int64 {
	if _, err := os.Stat(root); err != nil {
		return 0
	}
	var size int64
	conf := fastwalk.Config{Follow: false}
	fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, infoErr := d.Info(); infoErr == nil {
			atomic.AddInt64(&size, info.Size())
		}
		return nil
	})
	return size
}
