package scheduler

import (
	"context"
	"time"

	"hatm_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// HatmScheduler drives the time-based parts of the hatm lifecycle: closing
// expired hatms with debt conversion, and reminding participants about
// unread juzs near the deadline. The core itself never sweeps; this is the
// external collaborator that does.
type HatmScheduler struct {
	cronEngine     *cron.Cron
	hatmService    *app.HatmService
	groupService   *app.GroupService
	userService    *app.UserService
	dispatcher     *app.Dispatcher
	log            *logrus.Entry
	cronSpecExpiry string
	cronSpecRemind string
	reminderWindow time.Duration
}

func NewHatmScheduler(
	hatmService *app.HatmService,
	groupService *app.GroupService,
	userService *app.UserService,
	dispatcher *app.Dispatcher,
	log *logrus.Entry,
	cronSpecExpiry string,
	cronSpecRemind string,
	reminderWindowDays int,
) *HatmScheduler {
	return &HatmScheduler{
		cronEngine:     cron.New(cron.WithLocation(time.Local)),
		hatmService:    hatmService,
		groupService:   groupService,
		userService:    userService,
		dispatcher:     dispatcher,
		log:            log,
		cronSpecExpiry: cronSpecExpiry,
		cronSpecRemind: cronSpecRemind,
		reminderWindow: time.Duration(reminderWindowDays) * 24 * time.Hour,
	}
}

func (s *HatmScheduler) Start() error {
	if _, err := s.cronEngine.AddFunc(s.cronSpecExpiry, s.runExpirySweep); err != nil {
		return err
	}
	if _, err := s.cronEngine.AddFunc(s.cronSpecRemind, s.runReminders); err != nil {
		return err
	}
	s.cronEngine.Start()
	s.log.Info("Hatm scheduler started")
	return nil
}

func (s *HatmScheduler) Stop() {
	s.log.Info("Stopping hatm scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done() // wait for running jobs
	s.log.Info("Hatm scheduler gracefully stopped")
}

func (s *HatmScheduler) runExpirySweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	results, err := s.hatmService.CompleteExpired(ctx)
	if err != nil {
		s.log.WithError(err).Error("Expiry sweep failed")
		return
	}
	if len(results) == 0 {
		return
	}
	s.log.WithField("hatms", len(results)).Info("Expiry sweep closed hatms")

	for _, res := range results {
		s.announceCompletion(ctx, res.Hatm.GroupID, res)
	}
}

// announceCompletion notifies every group member about the closed hatm and
// each debtor about their new debts.
func (s *HatmScheduler) announceCompletion(ctx context.Context, groupID int64, res app.ExpiredResult) {
	g, err := s.groupService.GetByID(ctx, groupID)
	if err != nil {
		s.log.WithError(err).WithField("group_id", groupID).Error("Cannot resolve group for completion notice")
		return
	}

	members, err := s.groupService.Members(ctx, groupID)
	if err != nil {
		s.log.WithError(err).WithField("group_id", groupID).Error("Cannot list members for completion notice")
		return
	}
	for _, m := range members {
		u, err := s.userService.GetByID(ctx, m.UserID)
		if err != nil {
			s.log.WithError(err).WithField("user_id", m.UserID).Warn("Skipping completion notice for unknown user")
			continue
		}
		s.dispatcher.NotifyHatmCompleted(u, res.Hatm, g)
	}

	for _, debtor := range res.Debtors {
		s.dispatcher.NotifyDebtsCreated(debtor.User, debtor.Juzs)
	}
}

func (s *HatmScheduler) runReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	targets, err := s.hatmService.ReminderTargets(ctx, s.reminderWindow)
	if err != nil {
		s.log.WithError(err).Error("Reminder collection failed")
		return
	}
	for _, t := range targets {
		s.dispatcher.NotifyPendingReminder(t.Member.User, t.Hatm, t.Member.Juzs, t.DaysLeft)
	}
	if len(targets) > 0 {
		s.log.WithField("reminders", len(targets)).Info("Deadline reminders dispatched")
	}
}
