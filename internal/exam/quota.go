package exam

import "github.com/pavelanni/examtrainer/internal/model"

// CountForBlock returns how many distinct questions of block have a record.
func CountForBlock(block model.Block, answers map[model.AnswerKey]model.AnswerRecord) int {
	n := 0
	for key := range answers {
		if key.Block == block {
			n++
		}
	}
	return n
}

// CanAccept reports whether an answer to questionID may be recorded in block.
// Updates of an existing record are always accepted; only new questions
// consume quota.
func CanAccept(block model.Block, answers map[model.AnswerKey]model.AnswerRecord, questionID model.QuestionID) bool {
	if _, ok := answers[model.AnswerKey{Block: block, QuestionID: questionID}]; ok {
		return true
	}
	return CountForBlock(block, answers) < block.Quota()
}

// CheckQuota is CanAccept reported as an error.
func CheckQuota(block model.Block, answers map[model.AnswerKey]model.AnswerRecord, questionID model.QuestionID) error {
	if CanAccept(block, answers, questionID) {
		return nil
	}
	return &model.QuotaExceededError{Block: block, Quota: block.Quota()}
}
