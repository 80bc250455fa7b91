package engine

import (
	"fmt"

	"github.com/BartekS5/bigsitemap/pkg/models"
)

// FileRange is the contiguous run of batches one output file owns.
// LastBatch < FirstBatch means the file owns no batches.
type FileRange struct {
	Index      int
	FirstBatch int64
	LastBatch  int64
}

// Batches returns the number of batches in the range.
func (f FileRange) Batches() int64 {
	if f.LastBatch < f.FirstBatch {
		return 0
	}
	return f.LastBatch - f.FirstBatch + 1
}

// Plan maps the batches of one source onto output files. It is computed once
// per source per run and never changes afterwards.
type Plan struct {
	TotalCount int64
	BatchSize  int64
	MaxPerFile int64
	NumBatches int64
	Files      []FileRange
}

// NumFiles is the number of output files; at least one, even for an empty source.
func (p *Plan) NumFiles() int {
	return len(p.Files)
}

// CheckLimits validates planner settings. It runs at setup so that a bad
// configuration fails before any source is queried.
func CheckLimits(batchSize, maxPerFile int64) error {
	if batchSize <= 1 {
		return fmt.Errorf("%w: batch size must be greater than 1, got %d", models.ErrConfiguration, batchSize)
	}
	if maxPerFile <= 1 {
		return fmt.Errorf("%w: max per file must be greater than 1, got %d", models.ErrConfiguration, maxPerFile)
	}
	if batchSize > maxPerFile {
		return fmt.Errorf("%w: batch size %d exceeds max per file %d", models.ErrConfiguration, batchSize, maxPerFile)
	}
	return nil
}

// NewPlan partitions total records into batches of batchSize and spreads the
// batches over ceil(total/maxPerFile) files. File f owns batches
// (ceil((f-1)*b/n), ceil(f*b/n)], so ranges are contiguous, cover every batch
// exactly once and remainder batches are spread instead of piling up at the end.
func NewPlan(total, batchSize, maxPerFile int64) (*Plan, error) {
	if err := CheckLimits(batchSize, maxPerFile); err != nil {
		return nil, err
	}
	if total < 0 {
		return nil, fmt.Errorf("negative record count %d", total)
	}

	p := &Plan{TotalCount: total, BatchSize: batchSize, MaxPerFile: maxPerFile}

	if total <= batchSize {
		if total > 0 {
			p.NumBatches = 1
		}
		p.Files = []FileRange{{Index: 1, FirstBatch: 1, LastBatch: p.NumBatches}}
		return p, nil
	}

	p.NumBatches = ceilDiv(total, batchSize)
	numFiles := ceilDiv(total, maxPerFile)

	p.Files = make([]FileRange, 0, numFiles)
	var prevEnd int64
	for f := int64(1); f <= numFiles; f++ {
		end := ceilDiv(f*p.NumBatches, numFiles)
		p.Files = append(p.Files, FileRange{Index: int(f), FirstBatch: prevEnd + 1, LastBatch: end})
		prevEnd = end
	}
	return p, nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
