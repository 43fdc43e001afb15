package audit

import (
	"fmt"
	"path/filepath"
)

// VerifyChain re-computes each entry hash and link to detect tampering
func (j *Journal) VerifyChain() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for i, e := range j.entries {
		h, err := e.ComputeHash()
		if err != nil {
			return fmt.Errorf("compute hash for index %d: %w", e.Index, err)
		}
		if h != e.Hash {
			return fmt.Errorf("hash mismatch at index %d", e.Index)
		}
		if i > 0 && e.PrevHash != j.entries[i-1].Hash {
			return fmt.Errorf("prev hash mismatch at index %d", e.Index)
		}
		if e.Index != i {
			return fmt.Errorf("index mismatch: expected %d got %d", i, e.Index)
		}
	}
	return nil
}

// VerifyResponses checks that every persisted response file still hashes
// to the value recorded when it was written
func (j *Journal) VerifyResponses() error {
	for _, e := range j.Entries() {
		if e.Response == "" {
			continue
		}
		h, err := HashFile(filepath.Join(filepath.Dir(j.path), e.Response))
		if err != nil {
			return fmt.Errorf("index %d: %w", e.Index, err)
		}
		if h != e.BodyHash {
			return fmt.Errorf("response mismatch at index %d (%s)", e.Index, e.Response)
		}
	}
	return nil
}
