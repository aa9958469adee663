package graph

import "github.com/google/uuid"

// HashSignature derives a stable Signature from arbitrary state-identifying
// content (e.g. an HMM state's triphone label plus position-in-word index).
// Linguist implementations are free to construct their own Signature values
// directly; this helper exists for linguists that only have unstructured
// content to key off, mirroring the teacher's content-addressed ID scheme
// (core.HashContent's uuid.NewSHA1 over a namespace).
func HashSignature(content string) Signature {
	return Signature(uuid.NewSHA1(uuid.NameSpaceOID, []byte(content)).String())
}
