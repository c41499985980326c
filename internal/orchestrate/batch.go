package orchestrate

import "time"

// DefaultBatchBudget caps one transcription batch's summed estimated
// audio duration.
const DefaultBatchBudget = 7 * time.Minute

// packBatches groups files into batches whose estimated durations sum to
// at most budget, preserving discovery order. A single file longer than
// the whole budget still ships, alone, so one long recording cannot
// starve but also cannot monopolize a slot shared with others.
func packBatches(files []*File, budget time.Duration) [][]*File {
	if budget <= 0 {
		budget = DefaultBatchBudget
	}

	var batches [][]*File
	var current []*File
	var used time.Duration

	for _, f := range files {
		d := f.Item.Duration
		if len(current) > 0 && used+d > budget {
			batches = append(batches, current)
			current = nil
			used = 0
		}
		current = append(current, f)
		used += d
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
