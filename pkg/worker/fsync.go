package worker

import "os"

// fsyncPath opens path and flushes it to stable storage. Handlers write
// output through the atomic write-then-rename convention in pkg/volume;
// this is the belt-and-braces step that makes sure the renamed file's
// bytes are actually durable before a job is reported finished.
func fsyncPath(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
