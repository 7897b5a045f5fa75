package exam

import (
	"sort"

	"github.com/pavelanni/examtrainer/internal/model"
)

// Summarize reduces the answer map into an exam summary. Missed checkpoints
// are ranked by count; ties keep the order of first appearance when walking
// records block by block and by question id within a block.
func Summarize(answers map[model.AnswerKey]model.AnswerRecord) model.ExamSummary {
	records := orderedRecords(answers)

	summary := model.ExamSummary{
		Answered: len(records),
		Missed:   []model.CheckpointTally{},
		Blocks:   make([]model.BlockSummary, 0, len(model.Blocks)),
	}

	total := 0
	counts := map[string]int{}
	var order []string
	perBlock := map[model.Block][]int{}
	for _, r := range records {
		total += r.Coverage
		perBlock[r.Block] = append(perBlock[r.Block], r.Coverage)
		for _, cp := range r.Missed {
			if _, seen := counts[cp]; !seen {
				order = append(order, cp)
			}
			counts[cp]++
		}
	}
	summary.Average = roundedAverage(total, len(records))

	for _, cp := range order {
		summary.Missed = append(summary.Missed, model.CheckpointTally{Checkpoint: cp, Count: counts[cp]})
	}
	sort.SliceStable(summary.Missed, func(i, j int) bool {
		return summary.Missed[i].Count > summary.Missed[j].Count
	})

	for _, b := range model.Blocks {
		covs := perBlock[b]
		sum := 0
		for _, c := range covs {
			sum += c
		}
		summary.Blocks = append(summary.Blocks, model.BlockSummary{
			Block:    b,
			Answered: len(covs),
			Quota:    b.Quota(),
			Average:  roundedAverage(sum, len(covs)),
		})
	}
	return summary
}

// roundedAverage rounds half up; an empty set averages to 0.
func roundedAverage(sum, n int) int {
	if n == 0 {
		return 0
	}
	return (2*sum + n) / (2 * n)
}

func orderedRecords(answers map[model.AnswerKey]model.AnswerRecord) []model.AnswerRecord {
	records := make([]model.AnswerRecord, 0, len(answers))
	for _, r := range answers {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		bi, bj := records[i].Block.Index(), records[j].Block.Index()
		if bi != bj {
			return bi < bj
		}
		return records[i].QuestionID.Less(records[j].QuestionID)
	})
	return records
}
