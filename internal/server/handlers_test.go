package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/brainspark/engine/internal/analytics"
	"github.com/brainspark/engine/internal/auth"
	"github.com/brainspark/engine/internal/content"
	"github.com/brainspark/engine/internal/grading"
	"github.com/brainspark/engine/internal/llm"
	"github.com/brainspark/engine/internal/mastery"
	"github.com/brainspark/engine/internal/ratelimit"
	"github.com/brainspark/engine/internal/store"
)

type testEnv struct {
	server   *Server
	store    *store.Store
	verifier *auth.Verifier
	provider *llm.MockProvider
}

func newTestEnv(t *testing.T, rateLimit int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.UpsertQuestion(t.Context(), &content.Question{
		ID:              "q1",
		Stem:            "Explain why the cell membrane is selectively permeable.",
		ReferenceAnswer: "The bilayer admits small nonpolar molecules; proteins gate the rest.",
		Rubric:          "2 marks structure, 2 marks transport proteins, 1 mark example.",
		Subject:         "biology",
		Topics:          []string{"cells"},
		Difficulty:      3,
		QCS:             5,
	}))

	provider := llm.NewMockProvider()
	grader := grading.NewGrader(provider, grading.DefaultGraderConfig())
	orch := grading.NewOrchestrator(st, grader, st, st, nil)

	verifier, err := auth.NewVerifier("test-secret")
	require.NoError(t, err)

	srv := New(Options{
		Orchestrator: orch,
		Aggregator:   analytics.NewAggregator(st, time.UTC, nil),
		Mastery:      mastery.NewService(st, mastery.DefaultBands(), mastery.DefaultDecayConfig()),
		Verifier:     verifier,
		Limiter:      ratelimit.NewMemoryLimiter(rateLimit, time.Minute),
		Version:      "test",
	})

	return &testEnv{server: srv, store: st, verifier: verifier, provider: provider}
}

func (e *testEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := e.verifier.Mint(auth.Identity{UserID: userID, Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func gradeResponse(pct int, confidence float64) llm.MockResponse {
	raw := fmt.Sprintf(`{"percentage":%d,"confidence":%f,"feedback":{"summary":"ok","whatWasRight":[],"whatWasMissing":[],"misconceptions":[],"suggestions":[]},"rubricScores":[]}`,
		pct, confidence)
	return llm.MockResponse{Content: json.RawMessage(raw)}
}

func boolPtr(b bool) *bool { return &b }

func finalAnswer(eventID string, correct bool) *analytics.AnswerEvent {
	// Near-now so the mastery view reads back undecayed.
	at := time.Now().UTC()
	return &analytics.AnswerEvent{
		EventID:     eventID,
		UserID:      "u1",
		QuestionID:  "q1",
		Subject:     "biology",
		Topics:      []string{"cells"},
		QCS:         5,
		IsCorrect:   boolPtr(correct),
		TimeTakenMs: 30000,
		IsFinal:     true,
		FinalizedAt: &at,
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t, 10)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestGrade_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, 10)
	rec := env.do(t, http.MethodPost, "/api/v1/grade", "", gin.H{
		"attemptId": "a1", "questionId": "q1", "studentAnswer": "something",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGrade_EndToEnd(t *testing.T) {
	env := newTestEnv(t, 10)
	env.provider.AddResponse(gradeResponse(85, 0.92))

	rec := env.do(t, http.MethodPost, "/api/v1/grade", env.token(t, "u1", "student"), gin.H{
		"attemptId":     "a1",
		"questionId":    "q1",
		"studentAnswer": "The bilayer only admits small nonpolar molecules directly.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res grading.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, 85, res.Percentage)
	require.Equal(t, grading.Correct, res.Correctness)
	require.Equal(t, 4, res.Score)
	require.Equal(t, 5, res.MaxScore)

	// The attempt landed in the grading history log.
	hist, err := env.store.GradingHistory(t.Context(), "a1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func TestGrade_UnknownQuestion404(t *testing.T) {
	env := newTestEnv(t, 10)
	rec := env.do(t, http.MethodPost, "/api/v1/grade", env.token(t, "u1", "student"), gin.H{
		"attemptId": "a1", "questionId": "missing", "studentAnswer": "anything at all here",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGrade_RateLimited(t *testing.T) {
	env := newTestEnv(t, 1)
	env.provider.AddResponse(gradeResponse(85, 0.92))

	token := env.token(t, "u1", "student")
	body := gin.H{"attemptId": "a1", "questionId": "q1",
		"studentAnswer": "The bilayer only admits small nonpolar molecules directly."}

	rec := env.do(t, http.MethodPost, "/api/v1/grade", token, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/grade", token, body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestWriteAnswer_FoldsAndRecordsMastery(t *testing.T) {
	env := newTestEnv(t, 10)
	token := env.token(t, "u1", "student")

	event := finalAnswer("e1", true)
	rec := env.do(t, http.MethodPost, "/api/v1/answers/write", token, gin.H{
		"after": event,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	agg, err := env.store.GetDailyAggregate(t.Context(), "u1", analytics.DayKey(*event.FinalizedAt, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, agg)
	require.Equal(t, 1, agg.Correct)
	require.Equal(t, 5, agg.Points)

	// One correct attempt scores 73.0.
	mrec := env.do(t, http.MethodGet, "/api/v1/mastery/cells", token, nil)
	require.Equal(t, http.StatusOK, mrec.Code, mrec.Body.String())

	var tm mastery.TopicMastery
	require.NoError(t, json.Unmarshal(mrec.Body.Bytes(), &tm))
	require.Equal(t, 73.0, tm.Mastery)
	require.Equal(t, "proficient", tm.Level)
}

func TestWriteAnswer_DuplicateDeliveryFoldsOnce(t *testing.T) {
	env := newTestEnv(t, 10)
	token := env.token(t, "u1", "student")
	event := finalAnswer("e1", true)
	body := gin.H{"after": event}

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/answers/write", token, body)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	agg, err := env.store.GetDailyAggregate(t.Context(), "u1", analytics.DayKey(*event.FinalizedAt, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, agg.Attempted)
	require.Equal(t, 5, agg.Points)

	// Mastery tallies also folded once.
	trec, err := env.store.GetTopicRecord(t.Context(), "u1", "cells")
	require.NoError(t, err)
	require.NotNil(t, trec)
	require.Equal(t, 1, trec.Attempts)
}

func TestWriteAnswer_ForbiddenForOtherUser(t *testing.T) {
	env := newTestEnv(t, 10)
	rec := env.do(t, http.MethodPost, "/api/v1/answers/write",
		env.token(t, "u2", "student"), gin.H{"after": finalAnswer("e1", true)})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMastery_AllTopics(t *testing.T) {
	env := newTestEnv(t, 10)
	token := env.token(t, "u1", "student")

	require.Equal(t, http.StatusAccepted,
		env.do(t, http.MethodPost, "/api/v1/answers/write", token, gin.H{"after": finalAnswer("e1", true)}).Code)

	rec := env.do(t, http.MethodGet, "/api/v1/mastery", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UserID string                 `json:"userId"`
		Topics []*mastery.TopicMastery `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "u1", body.UserID)
	require.Len(t, body.Topics, 1)
}

func TestMastery_UnknownTopic404(t *testing.T) {
	env := newTestEnv(t, 10)
	rec := env.do(t, http.MethodGet, "/api/v1/mastery/never-studied",
		env.token(t, "u1", "student"), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMastery_TeacherCanReadStudents(t *testing.T) {
	env := newTestEnv(t, 10)
	studentToken := env.token(t, "u1", "student")
	require.Equal(t, http.StatusAccepted,
		env.do(t, http.MethodPost, "/api/v1/answers/write", studentToken, gin.H{"after": finalAnswer("e1", true)}).Code)

	rec := env.do(t, http.MethodGet, "/api/v1/mastery?userId=u1",
		env.token(t, "t1", "teacher"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/mastery?userId=u1",
		env.token(t, "u2", "student"), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
