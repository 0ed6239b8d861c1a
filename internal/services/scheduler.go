package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"silent-auction/internal/domain"
	"silent-auction/pkg/logger"
	"silent-auction/pkg/utils"
)

// AuctionCloser is the part of AuctionManager the scheduler drives.
type AuctionCloser interface {
	CloseAuction(ctx context.Context, itemID string) (*domain.Item, error)
}

// CronAuctionScheduler polls the scheduled_jobs table and closes items whose
// deadline has passed. Only the instance holding the leader lease runs jobs.
type CronAuctionScheduler struct {
	cron           *cron.Cron
	spec           string
	repo           domain.SchedulerRepository
	closer         AuctionCloser
	leaderElection domain.LeaderElection
	instanceID     string
	log            logger.Logger
	now            func() time.Time

	running sync.Mutex
}

func NewCronAuctionScheduler(
	spec string,
	repo domain.SchedulerRepository,
	closer AuctionCloser,
	leaderElection domain.LeaderElection,
	instanceID string,
	log logger.Logger,
) *CronAuctionScheduler {
	return &CronAuctionScheduler{
		cron:           cron.New(cron.WithSeconds()),
		spec:           spec,
		repo:           repo,
		closer:         closer,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		log:            log,
		now:            time.Now,
	}
}

func (s *CronAuctionScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting auction scheduler", "spec", s.spec, "instance_id", s.instanceID)

	_, err := s.cron.AddFunc(s.spec, func() {
		s.Tick(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CronAuctionScheduler) Stop() error {
	s.log.Info("Stopping auction scheduler")
	<-s.cron.Stop().Done()

	if s.leaderElection != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.leaderElection.ReleaseLeadership(ctx, s.instanceID); err != nil {
			s.log.Warn("Failed to release leadership", "error", err)
		}
	}
	return nil
}

func (s *CronAuctionScheduler) ScheduleAuctionEnd(ctx context.Context, itemID string, endTime time.Time) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		ItemID:    itemID,
		JobType:   domain.JobEndAuction,
		RunAt:     endTime,
		Status:    domain.JobPending,
		CreatedAt: s.now().UTC(),
	}
	return s.repo.CreateJob(ctx, job)
}

func (s *CronAuctionScheduler) CancelSchedule(ctx context.Context, itemID string) error {
	return s.repo.CancelJobsForItem(ctx, itemID)
}

// Tick runs one scheduling round. Overlapping rounds are skipped.
func (s *CronAuctionScheduler) Tick(ctx context.Context) {
	if !s.running.TryLock() {
		s.log.Debug("Previous scheduler round still running")
		return
	}
	defer s.running.Unlock()

	if !s.ensureLeader(ctx) {
		return
	}
	s.processPendingJobs(ctx)
}

func (s *CronAuctionScheduler) ensureLeader(ctx context.Context) bool {
	if s.leaderElection == nil {
		return true
	}

	isLeader, err := s.leaderElection.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Failed to check leadership", "error", err)
		return false
	}
	if isLeader {
		return true
	}

	acquired, err := s.leaderElection.BecomeLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Failed to acquire leadership", "error", err)
		return false
	}
	return acquired
}

func (s *CronAuctionScheduler) processPendingJobs(ctx context.Context) {
	jobs, err := s.repo.GetPendingJobs(ctx, s.now().UTC())
	if err != nil {
		s.log.Error("Failed to get pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		s.log.Info("Processing job", "job_id", job.ID, "type", job.JobType, "item_id", job.ItemID)

		status := domain.JobExecuted
		switch job.JobType {
		case domain.JobEndAuction:
			_, err = s.closer.CloseAuction(ctx, job.ItemID)
		default:
			s.log.Warn("Unknown job type", "job_id", job.ID, "type", job.JobType)
			status = domain.JobCancelled
			err = nil
		}

		if errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("Job refers to unknown item", "job_id", job.ID, "item_id", job.ItemID)
			status, err = domain.JobCancelled, nil
		}
		if err != nil {
			// Left pending; the next round retries it.
			s.log.Error("Failed to execute job", "job_id", job.ID, "error", err)
			continue
		}

		if err := s.repo.UpdateJobStatus(ctx, job.ID, status); err != nil {
			s.log.Error("Failed to update job status", "job_id", job.ID, "error", err)
		}
	}
}
