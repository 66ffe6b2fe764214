// Package files locates input data files and writes output files for
// resample jobs.
//
// Discovery expands the inputs of a job (plain files, directories and
// glob patterns) into the data files a loader can read. Manager resolves
// output paths against a base directory and writes files atomically, so
// a failed export never leaves a truncated result behind.
//
// Example usage:
//
//	discovery := files.NewDiscovery(workDir)
//	inputs, err := discovery.Expand([]string{"data/", "extra/*.csv"})
//
//	manager := files.NewManager(outDir, logger)
//	err = manager.WriteAtomic("yearly.csv", func(w io.Writer) error {
//	    return writer.Write(w, table)
//	})
package files
