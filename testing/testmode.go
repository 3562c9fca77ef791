// Package testing flags the process as running under tests. Importing it for
// side effects sets KEVIN_TEST_MODE before any package under test reads it.
package testing

import "os"

func init() {
	_ = os.Setenv("KEVIN_TEST_MODE", "1")
}
