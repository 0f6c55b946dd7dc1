package service

import (
	"encoding/json"
	"testing"

	"course_platform_backend/internal/model"
)

func scoringQuiz(passing int, showAnswers bool) *model.Quiz {
	return &model.Quiz{
		Title:               "scoring",
		PassingScorePercent: passing,
		ShowCorrectAnswers:  showAnswers,
	}
}

func question(id uint, qType, correct string, points int) model.QuizQuestion {
	q := model.QuizQuestion{
		QuestionType:  qType,
		Content:       "q",
		CorrectAnswer: correct,
		Points:        points,
	}
	q.ID = id
	return q
}

func TestScoreQuizWeightedByPoints(t *testing.T) {
	questions := []model.QuizQuestion{
		question(1, model.QuestionMultipleChoice, `"b"`, 3),
		question(2, model.QuestionTrueFalse, `true`, 1),
	}
	answers := AnswerSet{
		1: json.RawMessage(`"b"`),
		2: json.RawMessage(`false`),
	}

	result := ScoreQuiz(scoringQuiz(60, false), questions, answers)

	if result.CorrectCount != 1 {
		t.Fatalf("correct count = %d, want 1", result.CorrectCount)
	}
	// 3/4 分 = 75%
	if result.ScorePercent != 75 {
		t.Fatalf("score = %d, want 75", result.ScorePercent)
	}
	if !result.Passed {
		t.Fatalf("75%% should pass at threshold 60")
	}
}

func TestScoreQuizDeterministic(t *testing.T) {
	questions := []model.QuizQuestion{
		question(1, model.QuestionMultipleChoice, `"a"`, 2),
		question(2, model.QuestionFillBlank, `"gin"`, 1),
		question(3, model.QuestionMultipleSelect, `["x","y"]`, 2),
	}
	answers := AnswerSet{
		1: json.RawMessage(`"a"`),
		3: json.RawMessage(`["y","x"]`),
	}

	first := ScoreQuiz(scoringQuiz(50, false), questions, answers)
	for i := 0; i < 10; i++ {
		again := ScoreQuiz(scoringQuiz(50, false), questions, answers)
		if again.ScorePercent != first.ScorePercent || again.CorrectCount != first.CorrectCount {
			t.Fatalf("run %d: got %d%%/%d correct, want %d%%/%d",
				i, again.ScorePercent, again.CorrectCount, first.ScorePercent, first.CorrectCount)
		}
	}
}

func TestScoreQuizUnansweredCountsWrong(t *testing.T) {
	questions := []model.QuizQuestion{
		question(1, model.QuestionTrueFalse, `true`, 1),
		question(2, model.QuestionTrueFalse, `false`, 1),
	}

	result := ScoreQuiz(scoringQuiz(60, false), questions, AnswerSet{
		1: json.RawMessage(`true`),
	})

	if result.ScorePercent != 50 {
		t.Fatalf("score = %d, want 50", result.ScorePercent)
	}
	if result.Passed {
		t.Fatalf("50%% should not pass at threshold 60")
	}
	if len(result.Feedback) != 2 {
		t.Fatalf("feedback entries = %d, want 2", len(result.Feedback))
	}
	if result.Feedback[1].Correct {
		t.Fatalf("unanswered question marked correct")
	}
}

func TestScoreQuizMultipleSelectExactSet(t *testing.T) {
	questions := []model.QuizQuestion{
		question(1, model.QuestionMultipleSelect, `["a","b","c"]`, 1),
	}

	cases := []struct {
		name    string
		answer  string
		correct bool
	}{
		{"exact in order", `["a","b","c"]`, true},
		{"exact reordered", `["c","a","b"]`, true},
		{"subset", `["a","b"]`, false},
		{"superset", `["a","b","c","d"]`, false},
		{"disjoint", `["x"]`, false},
	}
	for _, tc := range cases {
		result := ScoreQuiz(scoringQuiz(100, false), questions, AnswerSet{
			1: json.RawMessage(tc.answer),
		})
		if got := result.CorrectCount == 1; got != tc.correct {
			t.Errorf("%s: correct = %v, want %v", tc.name, got, tc.correct)
		}
	}
}

func TestScoreQuizFillBlankCaseSensitive(t *testing.T) {
	questions := []model.QuizQuestion{
		question(1, model.QuestionFillBlank, `"Paris"`, 1),
	}

	exact := ScoreQuiz(scoringQuiz(100, false), questions, AnswerSet{1: json.RawMessage(`"Paris"`)})
	if exact.CorrectCount != 1 {
		t.Fatalf("exact match scored wrong")
	}
	wrongCase := ScoreQuiz(scoringQuiz(100, false), questions, AnswerSet{1: json.RawMessage(`"paris"`)})
	if wrongCase.CorrectCount != 0 {
		t.Fatalf("case-insensitive match accepted")
	}
}

func TestScoreQuizFeedbackVisibility(t *testing.T) {
	questions := []model.QuizQuestion{
		question(1, model.QuestionTrueFalse, `true`, 1),
	}
	questions[0].Explanation = "because"
	answers := AnswerSet{1: json.RawMessage(`false`)}

	hidden := ScoreQuiz(scoringQuiz(60, false), questions, answers)
	if hidden.Feedback[0].CorrectAnswer != nil || hidden.Feedback[0].Explanation != "" {
		t.Fatalf("correct answer leaked with showCorrectAnswers off")
	}

	shown := ScoreQuiz(scoringQuiz(60, true), questions, answers)
	if string(shown.Feedback[0].CorrectAnswer) != `true` || shown.Feedback[0].Explanation != "because" {
		t.Fatalf("feedback missing with showCorrectAnswers on: %+v", shown.Feedback[0])
	}
}

func TestScoreQuizEmptyQuiz(t *testing.T) {
	result := ScoreQuiz(scoringQuiz(60, false), nil, AnswerSet{})
	if result.ScorePercent != 0 || result.Passed {
		t.Fatalf("empty quiz: score=%d passed=%v", result.ScorePercent, result.Passed)
	}
}
