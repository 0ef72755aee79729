package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

var _ events.RetryScheduler = (*Scheduler)(nil)

// ErrSchedulerNotBound is returned when a job is scheduled before the River
// client exists.
var ErrSchedulerNotBound = errors.New("job scheduler has no client")

// Inserter is satisfied by *river.Client.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Scheduler enqueues moderation retries. Workers need the scheduler before the
// River client can be built, so the client is bound afterwards.
type Scheduler struct {
	mu       sync.RWMutex
	inserter Inserter
	policy   *RetryPolicy
	logger   *slog.Logger
}

func NewScheduler(policy *RetryPolicy, logger *slog.Logger) *Scheduler {
	if policy == nil {
		policy = NewRetryPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{policy: policy, logger: logger}
}

func (s *Scheduler) Bind(inserter Inserter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserter = inserter
}

func (s *Scheduler) ScheduleModeration(ctx context.Context, commentID string) error {
	s.mu.RLock()
	inserter := s.inserter
	s.mu.RUnlock()
	if inserter == nil {
		return ErrSchedulerNotBound
	}

	opts := s.policy.InsertOptsForKind(JobKindCommentModeration)
	result, err := inserter.Insert(ctx, CommentModerationArgs{CommentID: commentID}, &opts)
	if err != nil {
		return fmt.Errorf("enqueue comment moderation: %w", err)
	}
	if result != nil && result.UniqueSkippedAsDuplicate {
		s.logger.Debug("moderation retry already queued", "comment_id", commentID)
	}
	return nil
}
