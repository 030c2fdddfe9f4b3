package segment

import (
	"encoding/hex"
	"strconv"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/papermill/core"
)

// hashSize is the digest length in bytes; hex encoding doubles it.
const hashSize = 16

// Hash returns the content hash of a segment. The digest covers the
// provenance triple and the content, so identical text at different
// positions hashes differently while re-running segmentation over the
// same input reproduces the same value.
func Hash(documentID core.ID, source string, seq int, content string) string {
	h, _ := blake2b.New(hashSize, nil)
	h.Write([]byte(strconv.FormatUint(uint64(documentID), 10)))
	h.Write([]byte{':'})
	h.Write([]byte(source))
	h.Write([]byte{':'})
	h.Write([]byte(strconv.Itoa(seq)))
	h.Write([]byte{':'})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}
