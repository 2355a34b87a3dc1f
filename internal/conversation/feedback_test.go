package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"lawchat/internal/backend"
)

func answered(t *testing.T, fb *fakeBackend) *Controller {
	t.Helper()
	fb.askFn = func(context.Context, backend.AskRequest) (*backend.AskResponse, error) {
		return &backend.AskResponse{Answer: "a", SID: "s-1", MID: "m-1"}, nil
	}
	c, _ := newTestController(t, fb, Options{})
	_, err := c.Send(context.Background(), "q")
	require.NoError(t, err)
	return c
}

func TestFeedback_LabelCommentSubmit(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{}
	c := answered(t, fb)

	require.NoError(t, c.SetLabel(ctx, 1, false))
	require.NoError(t, c.SetComment(ctx, 1, "cites the wrong rule"))
	require.NoError(t, c.SubmitFeedback(ctx, 1))

	msg, _ := c.Log().At(1)
	require.True(t, msg.Feedback.Submitted)
	require.False(t, *msg.Feedback.Correct)

	require.Len(t, fb.feedbacks, 1)
	sent := fb.feedbacks[0]
	require.Equal(t, "s-1", sent.SID)
	require.Equal(t, "m-1", sent.MID)
	require.False(t, *sent.Correct)
	require.Equal(t, "cites the wrong rule", sent.Comment)

	// editing after submit re-opens it, and a resubmit sends again
	require.NoError(t, c.SetLabel(ctx, 1, true))
	msg, _ = c.Log().At(1)
	require.False(t, msg.Feedback.Submitted)
	require.NoError(t, c.SubmitFeedback(ctx, 1))
	require.Len(t, fb.feedbacks, 2)
	require.True(t, *fb.feedbacks[1].Correct)
}

func TestFeedback_CommentOnlyIsSubmittable(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{}
	c := answered(t, fb)

	require.NoError(t, c.SetComment(ctx, 1, "missing the citation"))
	require.NoError(t, c.SubmitFeedback(ctx, 1))
	require.Nil(t, fb.feedbacks[0].Correct)
}

func TestFeedback_EmptyIsRejectedWithoutCall(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{}
	c := answered(t, fb)

	require.ErrorIs(t, c.SubmitFeedback(ctx, 1), ErrFeedbackEmpty)
	require.NoError(t, c.SetComment(ctx, 1, "   "))
	require.ErrorIs(t, c.SubmitFeedback(ctx, 1), ErrFeedbackEmpty)
	require.Empty(t, fb.feedbacks)
}

func TestFeedback_InvalidTargets(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{}
	c := answered(t, fb)
	before := c.Log().Messages()

	require.ErrorIs(t, c.SetLabel(ctx, 0, true), ErrNoFeedbackTarget)
	require.ErrorIs(t, c.SetLabel(ctx, 7, true), ErrNoFeedbackTarget)
	require.ErrorIs(t, c.SetComment(ctx, -1, "x"), ErrNoFeedbackTarget)
	require.ErrorIs(t, c.SubmitFeedback(ctx, 0), ErrNoFeedbackTarget)
	require.Equal(t, before, c.Log().Messages())
}

func TestFeedback_FailureKeepsUnsubmitted(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{feedbackErr: errors.New("502")}
	c := answered(t, fb)

	require.NoError(t, c.SetLabel(ctx, 1, true))
	require.Error(t, c.SubmitFeedback(ctx, 1))
	msg, _ := c.Log().At(1)
	require.False(t, msg.Feedback.Submitted)
	require.True(t, *msg.Feedback.Correct)
}

func TestFeedback_EditsTouchOnlyTheirMessage(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBackend{}
	c := answered(t, fb)
	_, err := c.Send(ctx, "second")
	require.NoError(t, err)

	require.NoError(t, c.SetLabel(ctx, 3, true))
	first, _ := c.Log().At(1)
	require.Nil(t, first.Feedback.Correct)
	second, _ := c.Log().At(3)
	require.True(t, *second.Feedback.Correct)
}
