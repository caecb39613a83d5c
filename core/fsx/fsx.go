// Package fsx holds the filesystem primitives the kernel's durability
// guarantees rest on: atomic whole-file writes, write-once creation, and
// single-line locked appends.
package fsx

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// WriteFileAtomic writes content to path via a temp file and rename so a
// crash never leaves a partially written artifact behind.
func WriteFileAtomic(path string, content []byte, mode os.FileMode) error {
	parent := filepath.Dir(path)
	base := filepath.Base(path)

	tempFile, err := os.CreateTemp(parent, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(content); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Chmod(mode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS != "windows" {
			return fmt.Errorf("rename temp file: %w", err)
		}
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("remove destination before rename: %w", removeErr)
		}
		if renameErr := os.Rename(tempPath, path); renameErr != nil {
			return fmt.Errorf("rename temp file after remove: %w", renameErr)
		}
	}
	cleanup = false

	syncDirectory(parent)
	return nil
}

// WriteFileExclusive creates path with the given content, failing if the
// path already exists. The O_EXCL create is the atomic primitive behind the
// kernel's write-once evidence discipline: under concurrent attempts exactly
// one caller wins and every other caller observes os.IsExist on the cause.
// Parent directories are created as needed.
func WriteFileExclusive(path string, content []byte, mode os.FileMode) error {
	parent := filepath.Dir(path)
	if parent != "." && parent != "" {
		if err := os.MkdirAll(parent, 0o750); err != nil {
			return fmt.Errorf("create parent directory: %w", err)
		}
	}
	// #nosec G304 -- destination path is explicit caller input.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("create exclusive file: %w", err)
	}
	written := false
	defer func() {
		if !written {
			_ = file.Close()
			_ = os.Remove(path)
		}
	}()
	if _, err := file.Write(content); err != nil {
		return fmt.Errorf("write exclusive file: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync exclusive file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close exclusive file: %w", err)
	}
	written = true
	syncDirectory(parent)
	return nil
}

func syncDirectory(parent string) {
	if parent == "" || parent == "." {
		return
	}
	// #nosec G304 -- parent directory path is derived from an explicit caller-provided destination path.
	if dirHandle, err := os.Open(parent); err == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}
}
