//go:build windows

package event

import "os"

const lockExclusive = 0

// acquireFileLock is a no-op on Windows; cross-process locking is not
// supported, but the Log's own mutex still serializes in-process writers.
func acquireFileLock(path string, lockType int) (*os.File, error) {
	return nil, nil
}

func releaseFileLock(lockFile *os.File) {}
