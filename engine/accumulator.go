package engine

import (
	"encoding/json"

	"github.com/inboxtriage/engine/blobstore"
	"github.com/inboxtriage/engine/domain"
	"github.com/inboxtriage/engine/kvstore"
)

// loadAccumulator reads the single AccumulatorFile blob by its fixed name,
// creating it empty if it does not yet exist, and records its handle in KV
// under accumulatorFileId. The recorded handle is not read back: every
// call looks the blob up by AccumulatorFileName.
func loadAccumulator(kv kvstore.Store, blobs blobstore.Store) (domain.AccumulatorFile, blobstore.Handle, error) {
	empty, err := json.Marshal(domain.AccumulatorFile{})
	if err != nil {
		return domain.AccumulatorFile{}, "", err
	}
	content, handle, err := blobs.ReadOrInit(AccumulatorFileName, empty)
	if err != nil {
		return domain.AccumulatorFile{}, "", err
	}
	if err := writeAccumulatorFileID(kv, string(handle)); err != nil {
		return domain.AccumulatorFile{}, "", err
	}
	var acc domain.AccumulatorFile
	if len(content) > 0 {
		if err := json.Unmarshal(content, &acc); err != nil {
			return domain.AccumulatorFile{}, "", err
		}
	}
	return acc, handle, nil
}

// mergeAccumulator implements the passive-only merge rule: concatenate
// findings, sum totals, keep the earliest firstDate, advance lastDate to
// the window end.
func mergeAccumulator(old domain.AccumulatorFile, add domain.ClassifyResult, windowStart, windowEnd string, processed int) domain.AccumulatorFile {
	merged := domain.AccumulatorFile{
		MustDo:         append(append([]domain.Finding{}, old.MustDo...), add.MustDo...),
		MustKnow:       append(append([]domain.Finding{}, old.MustKnow...), add.MustKnow...),
		TotalProcessed: old.TotalProcessed + processed,
		FirstDate:      old.FirstDate,
		LastDate:       windowEnd,
	}
	if merged.FirstDate == "" {
		merged.FirstDate = windowStart
	}
	return merged
}

// writeAccumulator atomically replaces the blob's content. A torn write
// must leave the old content readable; bbolt's transaction atomicity gives
// us this without a literal temp-file rename.
func writeAccumulator(blobs blobstore.Store, handle blobstore.Handle, acc domain.AccumulatorFile) error {
	b, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	return blobs.Write(handle, b)
}

// clearAccumulated resets the accumulator after a successful digest send.
// It must never be called except on send success.
func clearAccumulated(blobs blobstore.Store, handle blobstore.Handle) error {
	return writeAccumulator(blobs, handle, domain.AccumulatorFile{})
}
