//go:build !unix

package filemem

import "os"

// mapFile reads the whole file when mmap is not available.
func mapFile(path string, _ bool) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	return data, func() error { return nil }, nil
}
