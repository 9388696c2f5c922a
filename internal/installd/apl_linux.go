//go:build linux

package installd

import "golang.org/x/sys/unix"

// aplXattr is the extended attribute carrying the directory's privilege
// label.
const aplXattr = "user.bundle.apl"

// setAPL stores the label as an xattr on the directory. Writing the
// same value again succeeds, keeping the operation idempotent. A
// filesystem without user xattr support skips labeling.
func setAPL(dir, apl string) error {
	err := unix.Setxattr(dir, aplXattr, []byte(apl), 0)
	if err == unix.ENOTSUP || err == unix.EOPNOTSUPP {
		return nil
	}
	return err
}

// getAPL reads the label back, returning empty when none is set.
func getAPL(dir string) (string, error) {
	buf := make([]byte, 64)
	n, err := unix.Getxattr(dir, aplXattr, buf)
	if err != nil {
		if err == unix.ENODATA {
			return "", nil
		}
		return "", err
	}
	return string(buf[:n]), nil
}
