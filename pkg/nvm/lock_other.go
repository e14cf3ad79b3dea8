//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package nvm

import "os"

// Advisory locking is only available on the unix targets.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) {}
