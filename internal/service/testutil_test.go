package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"course_platform_backend/internal/config"
	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/pkg/database"
	"course_platform_backend/pkg/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var loggerOnce sync.Once

// fakeClock 测试用可控时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testDBSeq int

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loggerOnce.Do(logger.InitTestLogger)

	testDBSeq++
	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("raw db: %v", err)
	}
	// 内存库绑定在单个连接上
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db          *gorm.DB
	clock       *fakeClock
	catalogRepo *repository.CatalogRepository
	attemptRepo *repository.QuizAttemptRepository
	assignRepo  *repository.AssignmentRepository
	progRepo    *repository.ProgressRepository
	progress    *ProgressService
	quiz        *QuizAttemptService
	assignment  *AssignmentService
	video       *VideoProgressService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	clock := newFakeClock()

	catalogRepo := repository.NewCatalogRepository(db)
	attemptRepo := repository.NewQuizAttemptRepository(db)
	assignRepo := repository.NewAssignmentRepository(db)
	progRepo := repository.NewProgressRepository(db)

	cfg := &config.Config{}
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = t.TempDir()

	progress := NewProgressService(catalogRepo, progRepo, nil, clock)
	quiz := NewQuizAttemptService(catalogRepo, attemptRepo, progress, clock)
	assignment := NewAssignmentService(catalogRepo, assignRepo, progress, NewStorageService(cfg), clock)
	video := NewVideoProgressService(catalogRepo, progress, clock)

	return &testEnv{
		db:          db,
		clock:       clock,
		catalogRepo: catalogRepo,
		attemptRepo: attemptRepo,
		assignRepo:  assignRepo,
		progRepo:    progRepo,
		progress:    progress,
		quiz:        quiz,
		assignment:  assignment,
		video:       video,
	}
}

func (e *testEnv) mustCreate(t *testing.T, value interface{}) {
	t.Helper()
	if err := e.db.Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}

func (e *testEnv) seedContent(t *testing.T, courseID uint, order int, ct model.ContentType) *model.ContentItem {
	t.Helper()
	item := &model.ContentItem{
		CourseID:    courseID,
		OrderIndex:  order,
		Title:       fmt.Sprintf("item %d", order),
		ContentType: ct,
	}
	e.mustCreate(t, item)
	return item
}

// seedQuiz 建一个两题的测验：单选(2分) + 判断(1分)
func (e *testEnv) seedQuiz(t *testing.T, courseID uint, mutate func(*model.Quiz)) (*model.Quiz, []model.QuizQuestion) {
	t.Helper()
	item := e.seedContent(t, courseID, 1, model.ContentQuiz)
	quiz := &model.Quiz{
		ContentItemID:       item.ID,
		Title:               "unit quiz",
		PassingScorePercent: 60,
	}
	if mutate != nil {
		mutate(quiz)
	}
	e.mustCreate(t, quiz)

	questions := []model.QuizQuestion{
		{
			QuizID:        quiz.ID,
			QuestionType:  model.QuestionMultipleChoice,
			Content:       "pick one",
			Options:       `["a","b","c"]`,
			CorrectAnswer: `"b"`,
			Points:        2,
			Order:         1,
		},
		{
			QuizID:        quiz.ID,
			QuestionType:  model.QuestionTrueFalse,
			Content:       "true or false",
			CorrectAnswer: `true`,
			Points:        1,
			Order:         2,
		},
	}
	for i := range questions {
		e.mustCreate(t, &questions[i])
	}
	return quiz, questions
}

func (e *testEnv) seedAssignment(t *testing.T, courseID uint, mutate func(*model.Assignment)) *model.Assignment {
	t.Helper()
	item := e.seedContent(t, courseID, 1, model.ContentAssignment)
	assignment := &model.Assignment{
		ContentItemID: item.ID,
		Title:         "essay",
		MaxScore:      100,
		MaxFiles:      3,
		MaxFileSize:   1 << 20,
	}
	if mutate != nil {
		mutate(assignment)
	}
	e.mustCreate(t, assignment)
	return assignment
}

// 满分作答：两题全对
func fullMarks(questions []model.QuizQuestion) AnswerSet {
	return AnswerSet{
		questions[0].ID: []byte(`"b"`),
		questions[1].ID: []byte(`true`),
	}
}

// 部分作答：只答对1分的判断题，2分的单选答错 → 33%
func partialMarks(questions []model.QuizQuestion) AnswerSet {
	return AnswerSet{
		questions[0].ID: []byte(`"a"`),
		questions[1].ID: []byte(`true`),
	}
}
