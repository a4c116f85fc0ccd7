package fat16

import "defs"

/// FsckReport_t summarizes a read-only consistency pass over the
/// mounted filesystem.
type FsckReport_t struct {
	FilesVisited      int
	DirsVisited       int
	ClustersInUse     int
	ClustersDoubleUsed int
	ChainErrors       int
}

/// Fsck walks every live directory entry reachable from the root and
/// every cluster chain it names, checking the invariant that no
/// cluster is shared by two chains. It never writes to the device;
/// problems are reported, not repaired.
func (f *Fat16_t) Fsck() (FsckReport_t, defs.Err_t) {
	var report FsckReport_t
	seen := make(map[uint16]bool)

	var visit func(dirCluster uint16) defs.Err_t
	visit = func(dirCluster uint16) defs.Err_t {
		report.DirsVisited++
		return f.enumerate(dirCluster, func(ent Dirent_t) {
			if ent.FirstClus == 0 {
				return
			}
			clusters, err := f.chain(ent.FirstClus)
			if err != 0 {
				report.ChainErrors++
				return
			}
			for _, c := range clusters {
				if seen[c] {
					report.ClustersDoubleUsed++
				}
				seen[c] = true
				report.ClustersInUse++
			}
			if ent.IsDir() {
				visit(ent.FirstClus)
			} else {
				report.FilesVisited++
			}
		})
	}

	if err := visit(0); err != 0 {
		return report, err
	}
	return report, 0
}
