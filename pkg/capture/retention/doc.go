// Package retention prunes the traffic record archive.
//
// Pruning runs in two phases: records older than Days are deleted, then the
// oldest records beyond MaxRecords. Either limit may be zero to disable it.
//
//	pruner := retention.NewPruner(store, cfg.Capture.Archive.Retention)
//	if err := pruner.Start(ctx); err != nil {
//	    return err
//	}
//	defer pruner.Stop()
package retention
