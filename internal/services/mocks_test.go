package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryRepository is an in-memory Repository for service tests. It is
// deliberately simple: maps guarded by one mutex, IDs handed out from a
// counter, filters reduced to what the tests exercise.
type memoryRepository struct {
	mu     sync.Mutex
	nextID uint

	quizzes   map[uint]*models.Quiz
	settings  map[uint]*models.QuizSettings // keyed by quiz ID
	questions map[uint]*models.Question
	links     map[uint]*models.AttemptLink
	attempts  map[uint]*models.Attempt
	warnings  map[uint][]*models.Warning // keyed by attempt ID
	answers   map[uint]*models.Answer
	students  map[uint]*models.Student
	folders   map[uint]*models.Folder
	bookmarks map[string]map[uint]bool
	emails    map[uint]*models.EmailMessage
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		quizzes:   make(map[uint]*models.Quiz),
		settings:  make(map[uint]*models.QuizSettings),
		questions: make(map[uint]*models.Question),
		links:     make(map[uint]*models.AttemptLink),
		attempts:  make(map[uint]*models.Attempt),
		warnings:  make(map[uint][]*models.Warning),
		answers:   make(map[uint]*models.Answer),
		students:  make(map[uint]*models.Student),
		folders:   make(map[uint]*models.Folder),
		bookmarks: make(map[string]map[uint]bool),
		emails:    make(map[uint]*models.EmailMessage),
	}
}

func (m *memoryRepository) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memoryRepository) Quiz() repositories.QuizRepository               { return &memQuizRepo{m} }
func (m *memoryRepository) Question() repositories.QuestionRepository       { return &memQuestionRepo{m} }
func (m *memoryRepository) AttemptLink() repositories.AttemptLinkRepository { return &memLinkRepo{m} }
func (m *memoryRepository) Attempt() repositories.AttemptRepository         { return &memAttemptRepo{m} }
func (m *memoryRepository) Answer() repositories.AnswerRepository           { return &memAnswerRepo{m} }
func (m *memoryRepository) Student() repositories.StudentRepository         { return &memStudentRepo{m} }
func (m *memoryRepository) Folder() repositories.FolderRepository           { return &memFolderRepo{m} }
func (m *memoryRepository) Bookmark() repositories.BookmarkRepository       { return &memBookmarkRepo{m} }
func (m *memoryRepository) Email() repositories.EmailRepository             { return &memEmailRepo{m} }
func (m *memoryRepository) User() repositories.UserRepository               { return &memUserRepo{} }
func (m *memoryRepository) Dashboard() repositories.DashboardRepository     { return &memDashboardRepo{m} }

func (m *memoryRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *memoryRepository) Ping(ctx context.Context) error { return nil }
func (m *memoryRepository) Close() error                   { return nil }

// ===== QUIZ =====

type memQuizRepo struct{ m *memoryRepository }

func (r *memQuizRepo) Create(_ context.Context, _ *gorm.DB, quiz *models.Quiz) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	quiz.ID = r.m.id()
	quiz.CreatedAt = time.Now()
	if quiz.Settings != nil {
		quiz.Settings.ID = r.m.id()
		quiz.Settings.QuizID = quiz.ID
		r.m.settings[quiz.ID] = quiz.Settings
	}
	r.m.quizzes[quiz.ID] = quiz
	return nil
}

func (r *memQuizRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Quiz, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	quiz, ok := r.m.quizzes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *quiz
	copied.Settings = r.m.settings[id]
	return &copied, nil
}

func (r *memQuizRepo) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	quiz, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, q := range r.m.questions {
		if q.QuizID == id {
			quiz.Questions = append(quiz.Questions, *q)
		}
	}
	sort.Slice(quiz.Questions, func(i, j int) bool {
		return quiz.Questions[i].Position < quiz.Questions[j].Position
	})
	quiz.QuestionCount = len(quiz.Questions)
	return quiz, nil
}

func (r *memQuizRepo) Update(_ context.Context, _ *gorm.DB, quiz *models.Quiz) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.quizzes[quiz.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *quiz
	stored.Settings = nil
	r.m.quizzes[quiz.ID] = &stored
	return nil
}

func (r *memQuizRepo) UpdateStatus(_ context.Context, _ *gorm.DB, id uint, status models.QuizStatus) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	quiz, ok := r.m.quizzes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	quiz.Status = status
	return nil
}

func (r *memQuizRepo) UpdateSettings(_ context.Context, _ *gorm.DB, settings *models.QuizSettings) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if settings.ID == 0 {
		settings.ID = r.m.id()
	}
	r.m.settings[settings.QuizID] = settings
	return nil
}

func (r *memQuizRepo) Delete(_ context.Context, _ *gorm.DB, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.quizzes, id)
	delete(r.m.settings, id)
	return nil
}

func (r *memQuizRepo) List(_ context.Context, _ *gorm.DB, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Quiz
	for _, quiz := range r.m.quizzes {
		if filters.CreatedBy != nil && quiz.CreatedBy != *filters.CreatedBy {
			continue
		}
		if filters.Status != nil && quiz.Status != *filters.Status {
			continue
		}
		if filters.FolderID != nil && (quiz.FolderID == nil || *quiz.FolderID != *filters.FolderID) {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(quiz.Title), strings.ToLower(filters.Search)) {
			continue
		}
		out = append(out, quiz)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	if filters.Offset > 0 {
		if filters.Offset >= len(out) {
			out = nil
		} else {
			out = out[filters.Offset:]
		}
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

func (r *memQuizRepo) CountByStatus(_ context.Context, _ *gorm.DB, creatorID string) (map[models.QuizStatus]int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	counts := make(map[models.QuizStatus]int64)
	for _, quiz := range r.m.quizzes {
		if quiz.CreatedBy == creatorID {
			counts[quiz.Status]++
		}
	}
	return counts, nil
}

func (r *memQuizRepo) HasAttempts(_ context.Context, _ *gorm.DB, id uint) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, attempt := range r.m.attempts {
		if attempt.QuizID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *memQuizRepo) ExistsByTitle(_ context.Context, _ *gorm.DB, title, creatorID string, excludeID *uint) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, quiz := range r.m.quizzes {
		if excludeID != nil && quiz.ID == *excludeID {
			continue
		}
		if quiz.CreatedBy == creatorID && strings.EqualFold(quiz.Title, title) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memQuizRepo) ExpireOverdue(_ context.Context, _ *gorm.DB, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var expired int64
	for _, quiz := range r.m.quizzes {
		if quiz.Status == models.QuizStatusActive && quiz.DueDate != nil && now.After(*quiz.DueDate) {
			quiz.Status = models.QuizStatusExpired
			expired++
		}
	}
	return expired, nil
}

// ===== QUESTION =====

type memQuestionRepo struct{ m *memoryRepository }

func (r *memQuestionRepo) Create(_ context.Context, _ *gorm.DB, question *models.Question) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	question.ID = r.m.id()
	r.m.questions[question.ID] = question
	return nil
}

func (r *memQuestionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	for _, q := range questions {
		if err := r.Create(ctx, tx, q); err != nil {
			return err
		}
	}
	return nil
}

func (r *memQuestionRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Question, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	question, ok := r.m.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *question
	return &copied, nil
}

func (r *memQuestionRepo) GetByQuiz(_ context.Context, _ *gorm.DB, quizID uint) ([]*models.Question, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Question
	for _, q := range r.m.questions {
		if q.QuizID == quizID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *memQuestionRepo) Update(_ context.Context, _ *gorm.DB, question *models.Question) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.questions[question.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.m.questions[question.ID] = question
	return nil
}

func (r *memQuestionRepo) Delete(_ context.Context, _ *gorm.DB, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.questions, id)
	return nil
}

func (r *memQuestionRepo) Reorder(_ context.Context, _ *gorm.DB, quizID uint, questionIDs []uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i, id := range questionIDs {
		if q, ok := r.m.questions[id]; ok && q.QuizID == quizID {
			q.Position = i + 1
		}
	}
	return nil
}

func (r *memQuestionRepo) CountByQuiz(_ context.Context, _ *gorm.DB, quizID uint) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var count int64
	for _, q := range r.m.questions {
		if q.QuizID == quizID {
			count++
		}
	}
	return count, nil
}

func (r *memQuestionRepo) SumMarks(_ context.Context, _ *gorm.DB, quizID uint) (float64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var sum float64
	for _, q := range r.m.questions {
		if q.QuizID == quizID {
			sum += q.EffectiveMarks()
		}
	}
	return sum, nil
}

func (r *memQuestionRepo) MaxPosition(_ context.Context, _ *gorm.DB, quizID uint) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	max := 0
	for _, q := range r.m.questions {
		if q.QuizID == quizID && q.Position > max {
			max = q.Position
		}
	}
	return max, nil
}

// ===== ATTEMPT LINK =====

type memLinkRepo struct{ m *memoryRepository }

func (r *memLinkRepo) CreateBatch(_ context.Context, _ *gorm.DB, links []*models.AttemptLink) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, link := range links {
		link.ID = r.m.id()
		link.CreatedAt = time.Now()
		r.m.links[link.ID] = link
	}
	return nil
}

func (r *memLinkRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.AttemptLink, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	link, ok := r.m.links[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *link
	return &copied, nil
}

func (r *memLinkRepo) GetByToken(_ context.Context, _ *gorm.DB, token string) (*models.AttemptLink, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, link := range r.m.links {
		if link.Token == token {
			copied := *link
			if quiz, ok := r.m.quizzes[link.QuizID]; ok {
				quizCopy := *quiz
				quizCopy.Settings = r.m.settings[quiz.ID]
				copied.Quiz = &quizCopy
			}
			if student, ok := r.m.students[link.StudentID]; ok {
				studentCopy := *student
				copied.Student = &studentCopy
			}
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memLinkRepo) MarkUsed(_ context.Context, _ *gorm.DB, id uint, usedAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	link, ok := r.m.links[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	link.UsedAt = &usedAt
	return nil
}

func (r *memLinkRepo) ListByQuiz(_ context.Context, _ *gorm.DB, quizID uint) ([]*models.AttemptLink, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.AttemptLink
	for _, link := range r.m.links {
		if link.QuizID == quizID {
			out = append(out, link)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memLinkRepo) Revoke(_ context.Context, _ *gorm.DB, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	link, ok := r.m.links[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now().Add(-time.Second)
	link.ExpiresAt = &now
	return nil
}

// ===== ATTEMPT =====

type memAttemptRepo struct{ m *memoryRepository }

func (r *memAttemptRepo) Create(_ context.Context, _ *gorm.DB, attempt *models.Attempt) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	attempt.ID = r.m.id()
	attempt.CreatedAt = time.Now()
	r.m.attempts[attempt.ID] = attempt
	return nil
}

func (r *memAttemptRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Attempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	attempt, ok := r.m.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *attempt
	return &copied, nil
}

func (r *memAttemptRepo) GetByIDWithDetails(_ context.Context, _ *gorm.DB, id uint) (*models.Attempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	attempt, ok := r.m.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *attempt
	if quiz, ok := r.m.quizzes[attempt.QuizID]; ok {
		quizCopy := *quiz
		quizCopy.Settings = r.m.settings[quiz.ID]
		copied.Quiz = &quizCopy
	}
	if student, ok := r.m.students[attempt.StudentID]; ok {
		studentCopy := *student
		copied.Student = &studentCopy
	}
	for _, answer := range r.m.answers {
		if answer.AttemptID == id {
			answerCopy := *answer
			if question, ok := r.m.questions[answer.QuestionID]; ok {
				questionCopy := *question
				answerCopy.Question = &questionCopy
			}
			copied.Answers = append(copied.Answers, answerCopy)
		}
	}
	sort.Slice(copied.Answers, func(i, j int) bool {
		return copied.Answers[i].QuestionID < copied.Answers[j].QuestionID
	})
	copied.Warnings = nil
	for _, w := range r.m.warnings[id] {
		copied.Warnings = append(copied.Warnings, *w)
	}
	return &copied, nil
}

func (r *memAttemptRepo) GetOpenByLinkToken(_ context.Context, _ *gorm.DB, token string) (*models.Attempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, attempt := range r.m.attempts {
		if attempt.LinkToken == token && attempt.Status == models.AttemptInProgress {
			copied := *attempt
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memAttemptRepo) GetLatestByLinkToken(_ context.Context, _ *gorm.DB, token string) (*models.Attempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var latest *models.Attempt
	for _, attempt := range r.m.attempts {
		if attempt.LinkToken == token && (latest == nil || attempt.ID > latest.ID) {
			latest = attempt
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *memAttemptRepo) Update(_ context.Context, _ *gorm.DB, attempt *models.Attempt) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.attempts[attempt.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *attempt
	copied.Quiz = nil
	copied.Student = nil
	copied.Answers = nil
	copied.Warnings = nil
	copied.WarningCount = stored.WarningCount
	if attempt.WarningCount > stored.WarningCount {
		copied.WarningCount = attempt.WarningCount
	}
	r.m.attempts[attempt.ID] = &copied
	return nil
}

func (r *memAttemptRepo) List(_ context.Context, _ *gorm.DB, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Attempt
	for _, attempt := range r.m.attempts {
		if filters.QuizID != nil && attempt.QuizID != *filters.QuizID {
			continue
		}
		if filters.StudentID != nil && attempt.StudentID != *filters.StudentID {
			continue
		}
		if filters.Status != nil && attempt.Status != *filters.Status {
			continue
		}
		if filters.CreatedBy != nil {
			quiz, ok := r.m.quizzes[attempt.QuizID]
			if !ok || quiz.CreatedBy != *filters.CreatedBy {
				continue
			}
		}
		out = append(out, attempt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	if filters.Offset > 0 && filters.Offset < len(out) {
		out = out[filters.Offset:]
	} else if filters.Offset >= len(out) && filters.Offset > 0 {
		out = nil
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

func (r *memAttemptRepo) AddWarning(_ context.Context, _ *gorm.DB, warning *models.Warning) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	attempt, ok := r.m.attempts[warning.AttemptID]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	warning.ID = r.m.id()
	warning.CreatedAt = time.Now()
	r.m.warnings[warning.AttemptID] = append(r.m.warnings[warning.AttemptID], warning)
	attempt.WarningCount++
	return attempt.WarningCount, nil
}

func (r *memAttemptRepo) ListExpired(_ context.Context, _ *gorm.DB, now time.Time, limit int) ([]*models.Attempt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Attempt
	for _, attempt := range r.m.attempts {
		if attempt.Status == models.AttemptInProgress && attempt.EndedAt != nil && now.After(*attempt.EndedAt) {
			out = append(out, attempt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAttemptRepo) GetStats(_ context.Context, _ *gorm.DB, quizID uint) (*repositories.AttemptStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stats := &repositories.AttemptStats{
		StatusBreakdown: make(map[models.AttemptStatus]int),
	}
	var completed, passed int
	var percentSum float64
	for _, attempt := range r.m.attempts {
		if attempt.QuizID != quizID {
			continue
		}
		stats.TotalAttempts++
		stats.StatusBreakdown[attempt.Status]++
		if attempt.Status == models.AttemptCompleted {
			completed++
			percentSum += attempt.Percentage
			if attempt.Passed {
				passed++
			}
		}
	}
	if completed > 0 {
		stats.AverageScore = percentSum / float64(completed)
		stats.PassRate = float64(passed) / float64(completed)
	}
	if stats.TotalAttempts > 0 {
		stats.CompletionRate = float64(completed) / float64(stats.TotalAttempts)
	}
	return stats, nil
}

// ===== ANSWER =====

type memAnswerRepo struct{ m *memoryRepository }

func (r *memAnswerRepo) Upsert(_ context.Context, _ *gorm.DB, answer *models.Answer) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.answers {
		if existing.AttemptID == answer.AttemptID && existing.QuestionID == answer.QuestionID {
			existing.Value = answer.Value
			existing.TimeSpent = answer.TimeSpent
			answer.ID = existing.ID
			return nil
		}
	}
	answer.ID = r.m.id()
	r.m.answers[answer.ID] = answer
	return nil
}

func (r *memAnswerRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Answer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	answer, ok := r.m.answers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *answer
	if question, ok := r.m.questions[answer.QuestionID]; ok {
		questionCopy := *question
		copied.Question = &questionCopy
	}
	return &copied, nil
}

func (r *memAnswerRepo) GetByAttempt(_ context.Context, _ *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Answer
	for _, answer := range r.m.answers {
		if answer.AttemptID == attemptID {
			copied := *answer
			if question, ok := r.m.questions[answer.QuestionID]; ok {
				questionCopy := *question
				copied.Question = &questionCopy
			}
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (r *memAnswerRepo) UpdateGrading(_ context.Context, _ *gorm.DB, answer *models.Answer) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.answers[answer.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Marks = answer.Marks
	stored.MaxMarks = answer.MaxMarks
	stored.IsCorrect = answer.IsCorrect
	stored.Explanation = answer.Explanation
	stored.Confidence = answer.Confidence
	stored.KeyPointsFound = answer.KeyPointsFound
	stored.KeyPointsMissed = answer.KeyPointsMissed
	stored.NeedsReview = answer.NeedsReview
	stored.IsGraded = answer.IsGraded
	stored.GradedBy = answer.GradedBy
	stored.GradedAt = answer.GradedAt
	return nil
}

func (r *memAnswerRepo) BulkUpdateGrading(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error {
	for _, answer := range answers {
		if err := r.UpdateGrading(ctx, tx, answer); err != nil {
			return err
		}
	}
	return nil
}

func (r *memAnswerRepo) GetGradingStats(_ context.Context, _ *gorm.DB, quizID uint) (*repositories.GradingStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stats := &repositories.GradingStats{}
	var marksSum float64
	for _, answer := range r.m.answers {
		attempt, ok := r.m.attempts[answer.AttemptID]
		if !ok || attempt.QuizID != quizID {
			continue
		}
		stats.TotalAnswers++
		if answer.NeedsReview {
			stats.PendingReview++
		}
		if answer.IsGraded {
			stats.GradedAnswers++
			marksSum += answer.Marks
			if answer.GradedBy == "auto" {
				stats.AutoGraded++
			} else {
				stats.ManualGraded++
			}
		}
	}
	if stats.GradedAnswers > 0 {
		stats.AverageMarks = marksSum / float64(stats.GradedAnswers)
	}
	return stats, nil
}

// ===== STUDENT =====

type memStudentRepo struct{ m *memoryRepository }

func (r *memStudentRepo) Create(_ context.Context, _ *gorm.DB, student *models.Student) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	student.ID = r.m.id()
	r.m.students[student.ID] = student
	return nil
}

func (r *memStudentRepo) CreateBatch(ctx context.Context, tx *gorm.DB, students []*models.Student) error {
	for _, s := range students {
		if err := r.Create(ctx, tx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *memStudentRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	student, ok := r.m.students[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *student
	return &copied, nil
}

func (r *memStudentRepo) GetByEmail(_ context.Context, _ *gorm.DB, creatorID, email string) (*models.Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, student := range r.m.students {
		if student.CreatedBy == creatorID && strings.EqualFold(student.Email, email) {
			copied := *student
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memStudentRepo) Update(_ context.Context, _ *gorm.DB, student *models.Student) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.students[student.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.m.students[student.ID] = student
	return nil
}

func (r *memStudentRepo) Delete(_ context.Context, _ *gorm.DB, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.students, id)
	return nil
}

func (r *memStudentRepo) List(_ context.Context, _ *gorm.DB, filters repositories.StudentFilters) ([]*models.Student, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Student
	for _, student := range r.m.students {
		if filters.CreatedBy != nil && student.CreatedBy != *filters.CreatedBy {
			continue
		}
		if filters.Group != nil && (student.Group == nil || *student.Group != *filters.Group) {
			continue
		}
		if filters.Search != "" {
			needle := strings.ToLower(filters.Search)
			if !strings.Contains(strings.ToLower(student.FullName), needle) &&
				!strings.Contains(strings.ToLower(student.Email), needle) {
				continue
			}
		}
		out = append(out, student)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	if filters.Offset > 0 && filters.Offset < len(out) {
		out = out[filters.Offset:]
	} else if filters.Offset >= len(out) && filters.Offset > 0 {
		out = nil
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

func (r *memStudentRepo) ListGroups(_ context.Context, _ *gorm.DB, creatorID string) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, student := range r.m.students {
		if student.CreatedBy == creatorID && student.Group != nil && !seen[*student.Group] {
			seen[*student.Group] = true
			out = append(out, *student.Group)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ===== FOLDER =====

type memFolderRepo struct{ m *memoryRepository }

func (r *memFolderRepo) Create(_ context.Context, _ *gorm.DB, folder *models.Folder) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	folder.ID = r.m.id()
	r.m.folders[folder.ID] = folder
	return nil
}

func (r *memFolderRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Folder, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	folder, ok := r.m.folders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *folder
	return &copied, nil
}

func (r *memFolderRepo) Update(_ context.Context, _ *gorm.DB, folder *models.Folder) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.folders[folder.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.m.folders[folder.ID] = folder
	return nil
}

func (r *memFolderRepo) Delete(_ context.Context, _ *gorm.DB, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.folders, id)
	for _, quiz := range r.m.quizzes {
		if quiz.FolderID != nil && *quiz.FolderID == id {
			quiz.FolderID = nil
		}
	}
	return nil
}

func (r *memFolderRepo) ListByCreator(_ context.Context, _ *gorm.DB, creatorID string) ([]*models.Folder, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Folder
	for _, folder := range r.m.folders {
		if folder.CreatedBy == creatorID {
			out = append(out, folder)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== BOOKMARK =====

type memBookmarkRepo struct{ m *memoryRepository }

func (r *memBookmarkRepo) Add(_ context.Context, _ *gorm.DB, userID string, quizID uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.bookmarks[userID] == nil {
		r.m.bookmarks[userID] = make(map[uint]bool)
	}
	r.m.bookmarks[userID][quizID] = true
	return nil
}

func (r *memBookmarkRepo) Remove(_ context.Context, _ *gorm.DB, userID string, quizID uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.bookmarks[userID], quizID)
	return nil
}

func (r *memBookmarkRepo) IsBookmarked(_ context.Context, _ *gorm.DB, userID string, quizID uint) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.bookmarks[userID][quizID], nil
}

func (r *memBookmarkRepo) ListQuizIDs(_ context.Context, _ *gorm.DB, userID string) ([]uint, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []uint
	for id := range r.m.bookmarks[userID] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ===== EMAIL =====

type memEmailRepo struct{ m *memoryRepository }

func (r *memEmailRepo) Create(_ context.Context, _ *gorm.DB, message *models.EmailMessage) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	message.ID = r.m.id()
	message.CreatedAt = time.Now()
	r.m.emails[message.ID] = message
	return nil
}

func (r *memEmailRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.EmailMessage, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	message, ok := r.m.emails[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *message
	return &copied, nil
}

func (r *memEmailRepo) Update(_ context.Context, _ *gorm.DB, message *models.EmailMessage) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.emails[message.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *message
	r.m.emails[message.ID] = &copied
	return nil
}

func (r *memEmailRepo) List(_ context.Context, _ *gorm.DB, filters repositories.EmailFilters) ([]*models.EmailMessage, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.EmailMessage
	for _, message := range r.m.emails {
		if filters.Status != nil && message.Status != *filters.Status {
			continue
		}
		out = append(out, message)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *memEmailRepo) ListQueued(_ context.Context, _ *gorm.DB, limit int) ([]*models.EmailMessage, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.EmailMessage
	for _, message := range r.m.emails {
		if message.Status == models.EmailQueued {
			out = append(out, message)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ===== USER =====

type memUserRepo struct{}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Role: models.RoleTeacher}, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return &models.User{ID: email, Email: email, Role: models.RoleTeacher}, nil
}

func (r *memUserRepo) Exists(_ context.Context, id string) (bool, error) {
	return true, nil
}

// ===== DASHBOARD =====

type memDashboardRepo struct{ m *memoryRepository }

func (r *memDashboardRepo) GetSummary(_ context.Context, _ *gorm.DB, creatorID string) (*models.DashboardSummary, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	summary := &models.DashboardSummary{
		QuizzesByStatus: make(map[string]int64),
	}
	for _, quiz := range r.m.quizzes {
		if quiz.CreatedBy == creatorID {
			summary.TotalQuizzes++
			summary.QuizzesByStatus[string(quiz.Status)]++
		}
	}
	for _, student := range r.m.students {
		if student.CreatedBy == creatorID {
			summary.TotalStudents++
		}
	}
	return summary, nil
}

func (r *memDashboardRepo) GetQuizStats(_ context.Context, _ *gorm.DB, quizID uint) (*models.QuizStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stats := &models.QuizStats{}
	var percentSum float64
	var passed int64
	for _, attempt := range r.m.attempts {
		if attempt.QuizID != quizID {
			continue
		}
		stats.TotalAttempts++
		if attempt.Status == models.AttemptCompleted {
			stats.CompletedAttempts++
			percentSum += attempt.Percentage
			if attempt.Passed {
				passed++
			}
		}
	}
	if stats.CompletedAttempts > 0 {
		stats.AveragePercent = percentSum / float64(stats.CompletedAttempts)
		stats.PassRate = float64(passed) / float64(stats.CompletedAttempts)
	}
	return stats, nil
}

func (r *memDashboardRepo) GetRecentAttempts(_ context.Context, _ *gorm.DB, creatorID string, limit int) ([]models.AttemptSummary, error) {
	return nil, nil
}
