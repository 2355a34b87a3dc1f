package conversation

import (
	"context"
	"fmt"

	"lawchat/internal/backend"
	"lawchat/internal/model"
)

// SetLabel marks an assistant message correct or incorrect. Any edit makes
// the feedback unsubmitted again.
func (c *Controller) SetLabel(ctx context.Context, index int, correct bool) error {
	unsent := false
	return c.editFeedback(ctx, index, model.FeedbackPatch{Correct: &correct, Submitted: &unsent})
}

func (c *Controller) SetComment(ctx context.Context, index int, comment string) error {
	unsent := false
	return c.editFeedback(ctx, index, model.FeedbackPatch{Comment: &comment, Submitted: &unsent})
}

func (c *Controller) editFeedback(ctx context.Context, index int, patch model.FeedbackPatch) error {
	if !c.log.ReplaceFeedback(index, patch) {
		return ErrNoFeedbackTarget
	}
	c.recordFeedback(ctx, index)
	c.notify(ctx)
	return nil
}

// SubmitFeedback sends the current label and comment of an assistant
// message. On success it is marked submitted unless the log was reset or
// the feedback edited while the request was in flight. Resubmitting is
// allowed and sends the current values again.
func (c *Controller) SubmitFeedback(ctx context.Context, index int) error {
	msg, ok := c.log.At(index)
	if !ok || msg.Role != model.RoleAssistant {
		return ErrNoFeedbackTarget
	}
	fb := model.Feedback{}
	if msg.Feedback != nil {
		fb = *msg.Feedback
	}
	if !fb.Submittable() {
		return ErrFeedbackEmpty
	}

	gen := c.log.Generation()
	sid := c.sessions.Load(ctx)

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	err := c.backend.Feedback(callCtx, backend.FeedbackRequest{
		SID:     sid,
		MID:     msg.MID,
		Correct: fb.Correct,
		Comment: fb.Comment,
	})
	if err != nil {
		c.logger.Warn("submit feedback failed", "sid", sid, "mid", msg.MID, "error", err)
		return fmt.Errorf("submit feedback failed: %w", err)
	}

	if c.log.Generation() != gen {
		return nil
	}
	current, ok := c.log.At(index)
	if !ok || current.Feedback == nil || !sameFeedback(*current.Feedback, fb) {
		return nil
	}
	sent := true
	c.log.ReplaceFeedback(index, model.FeedbackPatch{Submitted: &sent})
	c.recordFeedback(ctx, index)
	c.notify(ctx)
	return nil
}

func sameFeedback(a, b model.Feedback) bool {
	if a.Comment != b.Comment {
		return false
	}
	if a.Correct == nil || b.Correct == nil {
		return a.Correct == nil && b.Correct == nil
	}
	return *a.Correct == *b.Correct
}

func (c *Controller) recordFeedback(ctx context.Context, index int) {
	if c.opts.Recorder == nil {
		return
	}
	msg, ok := c.log.At(index)
	if !ok || msg.Feedback == nil {
		return
	}
	c.record(ctx, model.TranscriptEvent{
		Kind:     model.TranscriptFeedback,
		SID:      c.sessions.Load(ctx),
		Seq:      index,
		Feedback: msg.Feedback,
	})
}
