package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brainspark/engine/internal/analytics"
	"github.com/brainspark/engine/internal/auth"
	"github.com/brainspark/engine/internal/grading"
)

// handleHealth reports liveness plus basic build info. Unauthenticated.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleGrade runs one grading request for the authenticated caller.
func (s *Server) handleGrade(c *gin.Context) {
	var req grading.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, grading.E(grading.CodeInvalidArgument, "malformed request body: %v", err))
		return
	}

	res, err := s.orchestrator.Grade(c.Request.Context(), &req)
	if err != nil {
		s.log.Warn("grade failed",
			"questionId", req.QuestionID,
			"code", grading.CodeOf(err),
			"error", err)
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// writeAnswerRequest is one answer-record write delivered to the
// aggregation endpoint: the record state before and after the write.
// before is null for record creation.
type writeAnswerRequest struct {
	Before *analytics.AnswerEvent `json:"before"`
	After  *analytics.AnswerEvent `json:"after"`
}

// handleWriteAnswer folds one answer-record write into the owner's
// daily aggregate and, when the write finalizes the record, into
// per-topic mastery. Deliveries are at-least-once; duplicates fold to
// nothing.
func (s *Server) handleWriteAnswer(c *gin.Context) {
	var req writeAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, grading.E(grading.CodeInvalidArgument, "malformed request body: %v", err))
		return
	}
	if req.After == nil {
		abortError(c, grading.E(grading.CodeInvalidArgument, "after state is required"))
		return
	}

	id := identityFrom(c)
	if err := auth.AssertSelfOrRole(id, req.After.UserID, "service", "admin"); err != nil {
		abortError(c, err)
		return
	}

	ctx := c.Request.Context()
	folded, err := s.aggregator.Aggregate(ctx, req.Before, req.After)
	if err != nil {
		s.log.Error("aggregate failed", "event", req.After.EventID, "error", err)
		abortError(c, err)
		return
	}

	// Mastery counts each answer once, at the transition into final.
	// Gated on folded so a duplicate delivery of the finalization (which
	// the aggregator's CAS rejects) cannot bump the tallies twice.
	becameFinal := req.After.IsFinal && (req.Before == nil || !req.Before.IsFinal)
	if becameFinal && folded {
		at := time.Now()
		if req.After.FinalizedAt != nil {
			at = *req.After.FinalizedAt
		}
		err := s.mastery.RecordAnswer(ctx, req.After.UserID, req.After.Topics, req.After.Correct(), at)
		if err != nil {
			s.log.Error("mastery record failed", "event", req.After.EventID, "error", err)
			abortError(c, err)
			return
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"folded": folded})
}

// handleMasteryAll returns the mastery view for every topic the user
// has touched.
func (s *Server) handleMasteryAll(c *gin.Context) {
	userID, ok := s.masteryUser(c)
	if !ok {
		return
	}
	views, err := s.mastery.GetAllTopicMastery(c.Request.Context(), userID)
	if err != nil {
		s.log.Error("mastery read failed", "user", userID, "error", err)
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "topics": views})
}

// handleMasteryTopic returns the mastery view for a single topic.
func (s *Server) handleMasteryTopic(c *gin.Context) {
	userID, ok := s.masteryUser(c)
	if !ok {
		return
	}
	topic := c.Param("topicId")
	view, err := s.mastery.GetTopicMastery(c.Request.Context(), userID, topic)
	if err != nil {
		s.log.Error("mastery read failed", "user", userID, "topic", topic, "error", err)
		abortError(c, err)
		return
	}
	if view == nil {
		abortError(c, grading.E(grading.CodeNotFound, "no mastery history for topic %q", topic))
		return
	}
	c.JSON(http.StatusOK, view)
}

// masteryUser resolves which user's mastery is being read: the caller
// by default, or the userId query parameter for privileged roles.
func (s *Server) masteryUser(c *gin.Context) (string, bool) {
	id := identityFrom(c)
	target := c.Query("userId")
	if target == "" {
		target = id.UserID
	}
	if err := auth.AssertSelfOrRole(id, target, "teacher", "service", "admin"); err != nil {
		abortError(c, err)
		return "", false
	}
	return target, true
}
