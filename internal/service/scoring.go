package service

import (
	"encoding/json"
	"math"
	"sort"

	"course_platform_backend/internal/model"
)

// AnswerSet 题目ID到答案值的映射。答案的 JSON 形状由题型决定：
// 选择/填空为字符串，多选为字符串数组，判断为布尔。
type AnswerSet map[uint]json.RawMessage

type QuestionFeedback struct {
	QuestionID    uint            `json:"questionId"`
	Correct       bool            `json:"correct"`
	PointsAwarded int             `json:"pointsAwarded"`
	CorrectAnswer json.RawMessage `json:"correctAnswer,omitempty"`
	Explanation   string          `json:"explanation,omitempty"`
}

type ScoreResult struct {
	CorrectCount   int                `json:"correctCount"`
	TotalQuestions int                `json:"totalQuestions"`
	ScorePercent   int                `json:"scorePercent"`
	Passed         bool               `json:"passed"`
	Feedback       []QuestionFeedback `json:"feedback"`
}

// ScoreQuiz 纯函数评分：无副作用、无 I/O，相同输入必得相同输出。
// 未作答按答错计，不报错。按分值加权：
// scorePercent = round(100 * 答对题分值和 / 全部题分值和)。
func ScoreQuiz(quiz *model.Quiz, questions []model.QuizQuestion, answers AnswerSet) ScoreResult {
	result := ScoreResult{
		TotalQuestions: len(questions),
		Feedback:       make([]QuestionFeedback, 0, len(questions)),
	}

	totalPoints := 0
	earnedPoints := 0

	for _, q := range questions {
		points := q.Points
		if points <= 0 {
			points = 1
		}
		totalPoints += points

		correct := answerCorrect(&q, answers[q.ID])
		awarded := 0
		if correct {
			awarded = points
			earnedPoints += awarded
			result.CorrectCount++
		}

		fb := QuestionFeedback{
			QuestionID:    q.ID,
			Correct:       correct,
			PointsAwarded: awarded,
		}
		if quiz.ShowCorrectAnswers {
			fb.CorrectAnswer = json.RawMessage(q.CorrectAnswer)
			fb.Explanation = q.Explanation
		}
		result.Feedback = append(result.Feedback, fb)
	}

	if totalPoints > 0 {
		result.ScorePercent = int(math.Round(100 * float64(earnedPoints) / float64(totalPoints)))
	}
	result.Passed = result.ScorePercent >= quiz.PassingScorePercent

	return result
}

func answerCorrect(q *model.QuizQuestion, raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}

	switch q.QuestionType {
	case model.QuestionMultipleChoice, model.QuestionFillBlank:
		// 填空为精确匹配、大小写敏感（已知的严格性取舍，不做模糊归一化）
		var got, want string
		if json.Unmarshal(raw, &got) != nil {
			return false
		}
		if json.Unmarshal([]byte(q.CorrectAnswer), &want) != nil {
			return false
		}
		return got == want

	case model.QuestionTrueFalse:
		var got, want bool
		if json.Unmarshal(raw, &got) != nil {
			return false
		}
		if json.Unmarshal([]byte(q.CorrectAnswer), &want) != nil {
			return false
		}
		return got == want

	case model.QuestionMultipleSelect:
		// 集合完全相等才算对，无部分给分
		var got, want []string
		if json.Unmarshal(raw, &got) != nil {
			return false
		}
		if json.Unmarshal([]byte(q.CorrectAnswer), &want) != nil {
			return false
		}
		return sameStringSet(got, want)
	}

	return false
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
