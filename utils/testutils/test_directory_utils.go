package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crytic/chainfixture/utils"
	"github.com/stretchr/testify/require"
)

// CopyToTestDirectory copies files or directories from the provided filePath (relative to the working directory) to
// an ephemeral directory used for unit tests, and returns the absolute path of the copy.
func CopyToTestDirectory(t *testing.T, filePath string) string {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	sourcePath := filepath.Join(cwd, filePath)

	sourcePathInfo, err := os.Stat(sourcePath)
	require.NoError(t, err)

	targetPath := filepath.Join(t.TempDir(), "chainfixtureTest", sourcePathInfo.Name())
	if sourcePathInfo.IsDir() {
		err = utils.CopyDirectory(sourcePath, targetPath)
	} else {
		err = utils.CopyFile(sourcePath, targetPath)
	}
	require.NoError(t, err)

	targetPath, err = filepath.Abs(targetPath)
	require.NoError(t, err)
	return targetPath
}

// ExecuteInDirectory executes the given method with the working directory set to testPath (or its parent directory,
// if testPath is a file), restoring the previous working directory afterwards. Artifacts the method writes to the
// working directory end up in the test directory.
func ExecuteInDirectory(t *testing.T, testPath string, method func()) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	testPathInfo, err := os.Stat(testPath)
	require.NoError(t, err)

	testDirectory := testPath
	if !testPathInfo.IsDir() {
		testDirectory = filepath.Dir(testPath)
	}

	require.NoError(t, os.Chdir(testDirectory))
	defer func() {
		require.NoError(t, os.Chdir(cwd))
	}()

	method()
}
