package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
)

const bufferSize = 4096

func IsDir(path string) bool {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return true
	}

	return false
}

func IsFile(path string) bool {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return true
	}

	return false
}

// CompareFiles reports whether both files hold identical bytes.
func CompareFiles(left, right string) (bool, error) {
	f1, err := os.Open(path.Clean(left))

	if err != nil {
		return false, fmt.Errorf("failed to open file for left-hand comparison: %w", err)
	}

	defer f1.Close()

	f2, err := os.Open(path.Clean(right))

	if err != nil {
		return false, fmt.Errorf("failed to open file for right-hand comparison: %w", err)
	}

	defer f2.Close()

	info1, err := f1.Stat()

	if err != nil {
		return false, err
	}

	info2, err := f2.Stat()

	if err != nil {
		return false, err
	}

	if info1.Size() != info2.Size() {
		return false, nil
	}

	buf1 := make([]byte, bufferSize)
	buf2 := make([]byte, bufferSize)

	for {
		n1, err1 := io.ReadFull(f1, buf1)
		n2, err2 := io.ReadFull(f2, buf2)

		if err1 != nil && err1 != io.EOF && err1 != io.ErrUnexpectedEOF {
			return false, fmt.Errorf("error reading file for left-hand comparison: %w", err1)
		}

		if err2 != nil && err2 != io.EOF && err2 != io.ErrUnexpectedEOF {
			return false, fmt.Errorf("error reading file for right-hand comparison: %w", err2)
		}

		if n1 != n2 || !bytes.Equal(buf1[:n1], buf2[:n2]) {
			return false, nil
		}

		if err1 != nil && err2 != nil {
			return true, nil
		}
	}
}
