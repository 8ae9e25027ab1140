package indexer

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// Blocks returns the number of blocks in the range.
func (r BlockRange) Blocks() uint64 {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

// NextRange returns the range to fetch after checkpoint. The checkpoint block
// itself is included so a range is never skipped when the previous batch
// ended mid-block. ok is false when the chain has not moved past checkpoint.
func NextRange(checkpoint, height, batchSize uint64) (BlockRange, bool) {
	if height <= checkpoint {
		return BlockRange{}, false
	}
	to := height
	if batchSize > 0 && checkpoint+batchSize < height {
		to = checkpoint + batchSize
	}
	return BlockRange{From: checkpoint, To: to}, true
}
