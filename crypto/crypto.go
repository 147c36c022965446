package crypto

import (
	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/blake2b"
	"io"
	"os"
	"path"
)

// HashFile returns the base58 encoded BLAKE2b-512 digest of a file's contents.
// Version copies record it so a later integrity check does not need the source.
func HashFile(filePath string) (string, error) {
	file, err := os.Open(path.Clean(filePath))

	if err != nil {
		return "", err
	}

	defer file.Close()

	return HashReader(file)
}

func HashReader(reader io.Reader) (string, error) {
	hash, err := blake2b.New512(nil)

	if err != nil {
		return "", err
	}

	_, err = io.Copy(hash, reader)

	if err != nil {
		return "", err
	}

	// 64 bytes of digest come out as 87 to 88 characters of base58
	return base58.Encode(hash.Sum(nil)), nil
}
