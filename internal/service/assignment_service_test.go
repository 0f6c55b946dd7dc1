package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/util"
)

func TestSaveDraftLazyCreatesSingleRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	assignment := env.seedAssignment(t, 1, nil)

	first, err := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{Text: "v1"})
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if first.AttemptNumber != 1 || first.Status != model.SubmissionDraft {
		t.Fatalf("first draft: attempt=%d status=%s", first.AttemptNumber, first.Status)
	}

	// 截止前编辑只更新同一行，不保留中间版本
	second, err := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{Text: "v2"})
	if err != nil {
		t.Fatalf("redraft: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("redraft created new row %s, want %s", second.ID, first.ID)
	}

	subs, _ := env.assignRepo.ListByLearner(assignment.ID, 7)
	if len(subs) != 1 || subs[0].Text != "v2" {
		t.Fatalf("rows=%d text=%q", len(subs), subs[0].Text)
	}
}

func TestSaveDraftRejectsInvalidFileSet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	assignment := env.seedAssignment(t, 1, func(a *model.Assignment) {
		a.MaxFiles = 2
		a.MaxFileSize = 1024
		a.AllowedFileTypes = `[".pdf",".zip"]`
	})

	cases := []struct {
		name  string
		files []model.FileRef
	}{
		{"too many files", []model.FileRef{
			{Name: "a.pdf", Size: 10}, {Name: "b.pdf", Size: 10}, {Name: "c.pdf", Size: 10},
		}},
		{"oversized file", []model.FileRef{{Name: "a.pdf", Size: 2048}}},
		{"type not allowed", []model.FileRef{{Name: "a.exe", Size: 10}}},
	}
	for _, tc := range cases {
		_, err := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{Files: tc.files})
		if !errors.Is(err, util.ErrInvalidFileSet) {
			t.Errorf("%s: err = %v, want ErrInvalidFileSet", tc.name, err)
		}
	}

	// 校验在任何写入之前，拒绝后不应残留行
	subs, _ := env.assignRepo.ListByLearner(assignment.ID, 7)
	if len(subs) != 0 {
		t.Fatalf("rejected drafts left %d rows", len(subs))
	}

	// 大小写不同的扩展名在白名单内
	if _, err := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{
		Files: []model.FileRef{{Name: "report.PDF", Size: 100}},
	}); err != nil {
		t.Fatalf("uppercase extension rejected: %v", err)
	}
}

func TestSubmitRejectsEmptySubmission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	assignment := env.seedAssignment(t, 1, nil)

	draft, err := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{Text: "   "})
	if err != nil {
		t.Fatalf("draft: %v", err)
	}

	if _, err := env.assignment.Submit(ctx, draft.ID, 7); !errors.Is(err, util.ErrEmptySubmission) {
		t.Fatalf("empty submit err = %v, want ErrEmptySubmission", err)
	}

	stored, _ := env.assignRepo.FindSubmissionByID(draft.ID)
	if stored.Status != model.SubmissionDraft {
		t.Fatalf("status = %s, want draft", stored.Status)
	}
}

func TestSubmitMarksLateAfterDueDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	due := env.clock.Now().Add(time.Hour)
	assignment := env.seedAssignment(t, 1, func(a *model.Assignment) { a.DueDate = &due })

	draft, _ := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{Text: "on time"})
	sub, err := env.assignment.Submit(ctx, draft.ID, 7)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.IsLate {
		t.Fatalf("submission before due date marked late")
	}
	if sub.Status != model.SubmissionSubmitted || sub.SubmittedAt == nil {
		t.Fatalf("status=%s submittedAt=%v", sub.Status, sub.SubmittedAt)
	}

	// 迟交仍然接受，只做标记
	env.clock.Advance(2 * time.Hour)
	lateDraft, _ := env.assignment.SaveDraft(ctx, 8, assignment.ID, DraftRequest{Text: "late"})
	lateSub, err := env.assignment.Submit(ctx, lateDraft.ID, 8)
	if err != nil {
		t.Fatalf("late submit: %v", err)
	}
	if !lateSub.IsLate {
		t.Fatalf("submission after due date not marked late")
	}
}

func TestSubmitIdempotentForAssignments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	assignment := env.seedAssignment(t, 1, nil)

	draft, _ := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{Text: "essay"})
	if _, err := env.assignment.Submit(ctx, draft.ID, 7); err != nil {
		t.Fatalf("submit: %v", err)
	}

	again, err := env.assignment.Submit(ctx, draft.ID, 7)
	if !errors.Is(err, util.ErrAlreadySubmitted) {
		t.Fatalf("repeat submit err = %v, want ErrAlreadySubmitted", err)
	}
	if again == nil || again.Status != model.SubmissionSubmitted {
		t.Fatalf("repeat submit should return recorded row: %+v", again)
	}

	// 待评分期间不能再起草稿
	if _, err := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{Text: "edit"}); !errors.Is(err, util.ErrAlreadySubmitted) {
		t.Fatalf("draft while submitted err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestAutoGradeOnSubmit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	assignment := env.seedAssignment(t, 1, func(a *model.Assignment) {
		a.AutoGrade = true
		a.MaxScore = 50
	})

	draft, _ := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{Text: "done"})
	sub, err := env.assignment.Submit(ctx, draft.ID, 7)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Status != model.SubmissionGraded {
		t.Fatalf("status = %s, want graded", sub.Status)
	}
	if sub.Score == nil || *sub.Score != 50 || sub.GradedBy != model.SystemGrader {
		t.Fatalf("score=%v gradedBy=%s", sub.Score, sub.GradedBy)
	}

	rec, _ := env.progRepo.Find(7, assignment.ContentItemID)
	if rec == nil || !rec.Completed || rec.Score == nil || *rec.Score != 100 {
		t.Fatalf("progress after autograde: %+v", rec)
	}
}

func TestGradeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	assignment := env.seedAssignment(t, 1, func(a *model.Assignment) { a.MaxScore = 100 })

	draft, _ := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{Text: "essay"})

	// 未提交的不能评分
	if _, err := env.assignment.Grade(ctx, draft.ID, 80, "", 99); !errors.Is(err, util.ErrNotSubmitted) {
		t.Fatalf("grade draft err = %v, want ErrNotSubmitted", err)
	}

	if _, err := env.assignment.Submit(ctx, draft.ID, 7); err != nil {
		t.Fatalf("submit: %v", err)
	}

	for _, bad := range []int{-1, 101} {
		if _, err := env.assignment.Grade(ctx, draft.ID, bad, "", 99); !errors.Is(err, util.ErrInvalidScore) {
			t.Fatalf("score %d err = %v, want ErrInvalidScore", bad, err)
		}
	}

	graded, err := env.assignment.Grade(ctx, draft.ID, 80, "solid work", 99)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if graded.Status != model.SubmissionGraded || *graded.Score != 80 || graded.Feedback != "solid work" {
		t.Fatalf("graded row: %+v", graded)
	}
	if graded.GradedBy != "99" {
		t.Fatalf("gradedBy = %s, want 99", graded.GradedBy)
	}

	// 评完不能再评
	if _, err := env.assignment.Grade(ctx, draft.ID, 90, "", 99); !errors.Is(err, util.ErrNotSubmitted) {
		t.Fatalf("regrade err = %v, want ErrNotSubmitted", err)
	}

	rec, _ := env.progRepo.Find(7, assignment.ContentItemID)
	if rec == nil || rec.Score == nil || *rec.Score != 80 || rec.Passed == nil || !*rec.Passed {
		t.Fatalf("progress after grading: %+v", rec)
	}
}

func TestResubmissionCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	assignment := env.seedAssignment(t, 1, func(a *model.Assignment) { a.AllowResubmit = true })

	draft, _ := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{Text: "first try"})
	env.assignment.Submit(ctx, draft.ID, 7)
	if _, err := env.assignment.Grade(ctx, draft.ID, 40, "redo", 99); err != nil {
		t.Fatalf("grade: %v", err)
	}

	// 允许重交：新周期开新行，保留已评分历史
	redo, err := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{Text: "second try"})
	if err != nil {
		t.Fatalf("resubmit draft: %v", err)
	}
	if redo.AttemptNumber != 2 || redo.ID == draft.ID {
		t.Fatalf("resubmit: attempt=%d id=%s", redo.AttemptNumber, redo.ID)
	}

	subs, _ := env.assignRepo.ListByLearner(assignment.ID, 7)
	if len(subs) != 2 {
		t.Fatalf("rows = %d, want graded history + new draft", len(subs))
	}
	if subs[0].Status != model.SubmissionGraded || *subs[0].Score != 40 {
		t.Fatalf("graded history mutated: %+v", subs[0])
	}
}

func TestResubmissionForbiddenByDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	assignment := env.seedAssignment(t, 1, nil)

	draft, _ := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{Text: "only try"})
	env.assignment.Submit(ctx, draft.ID, 7)
	env.assignment.Grade(ctx, draft.ID, 90, "", 99)

	if _, err := env.assignment.SaveDraft(ctx, 7, assignment.ID, DraftRequest{Text: "again"}); !errors.Is(err, util.ErrAlreadySubmitted) {
		t.Fatalf("draft after grading err = %v, want ErrAlreadySubmitted", err)
	}
}
