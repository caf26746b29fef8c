package utils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CopyFile copies a file from a source path to a destination path, creating the destination's directory if needed.
// File permissions are retained.
func CopyFile(sourcePath string, targetPath string) error {
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	if sourceInfo.IsDir() {
		return errors.Errorf("could not copy file from '%s' to '%s' because the source path refers to a directory", sourcePath, targetPath)
	}

	if err = MakeDirectory(filepath.Dir(targetPath)); err != nil {
		return err
	}

	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer sourceFile.Close()

	targetFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, sourceInfo.Mode())
	if err != nil {
		return errors.WithStack(err)
	}
	defer targetFile.Close()

	_, err = io.Copy(targetFile, sourceFile)
	return errors.WithStack(err)
}

// CopyDirectory copies every file of a directory, and of its subdirectories, to a destination path.
func CopyDirectory(sourcePath string, targetPath string) error {
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	if !sourceInfo.IsDir() {
		return errors.Errorf("could not copy directory from '%s' to '%s' because the source path does not refer to a valid directory", sourcePath, targetPath)
	}

	if err = os.MkdirAll(targetPath, sourceInfo.Mode()); err != nil {
		return errors.WithStack(err)
	}

	dirEntries, err := os.ReadDir(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, dirEntry := range dirEntries {
		entSourcePath := filepath.Join(sourcePath, dirEntry.Name())
		entTargetPath := filepath.Join(targetPath, dirEntry.Name())
		if dirEntry.IsDir() {
			err = CopyDirectory(entSourcePath, entTargetPath)
		} else {
			err = CopyFile(entSourcePath, entTargetPath)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// MakeDirectory creates a directory at the given path, including any parent directories which do not exist.
// An empty path refers to the working directory and is left alone.
func MakeDirectory(dirToMake string) error {
	if dirToMake == "" {
		return nil
	}

	dirInfo, err := os.Stat(dirToMake)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.WithStack(os.MkdirAll(dirToMake, 0755))
		}
		return errors.WithStack(err)
	}

	if !dirInfo.IsDir() {
		return errors.Errorf("there is a file with the same name as %s", dirToMake)
	}
	return nil
}
