package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MetadataChecksum is the SafeTensors metadata key holding the hex SHA-256
// of the data section.
const MetadataChecksum = "sha256"

// checksum returns the hex SHA-256 of data.
func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// verifyChecksum compares data against a stored hex digest. An empty digest
// means the writer did not record one.
func verifyChecksum(data []byte, stored string) error {
	if stored == "" {
		return nil
	}
	if got := checksum(data); got != stored {
		return fmt.Errorf("%w: got %s, header says %s", ErrChecksumMismatch, got, stored)
	}
	return nil
}
