package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DigestSender рассылает недельный дайджест (notify.WeeklyDigest)
type DigestSender interface {
	Send(ctx context.Context, ref time.Time) error
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	digest   DigestSender
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
	now      func() time.Time

	// Время отправки дайджеста: воскресенье, час по UTC
	digestDay  time.Weekday
	digestHour int
}

// NewScheduler создаёт новый планировщик
func NewScheduler(digest DigestSender, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		digest:     digest,
		logger:     logger,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
		now:        time.Now,
		digestDay:  time.Sunday,
		digestHour: 18,
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Stringer("digest_day", s.digestDay),
		zap.Int("digest_hour_utc", s.digestHour))

	go s.runDigestTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
	<-s.done
}

// runDigestTask ждёт ближайшего времени рассылки и отправляет дайджест раз в неделю
func (s *Scheduler) runDigestTask(ctx context.Context) {
	defer close(s.done)

	for {
		wait := nextRun(s.now().UTC(), s.digestDay, s.digestHour).Sub(s.now())
		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
			s.sendDigest(ctx)
		case <-s.stopChan:
			timer.Stop()
			s.logger.Info("Weekly digest task stopped")
			return
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Weekly digest task cancelled")
			return
		}
	}
}

func (s *Scheduler) sendDigest(ctx context.Context) {
	s.logger.Info("Sending weekly digest")

	if err := s.digest.Send(ctx, s.now()); err != nil {
		s.logger.Error("Failed to send weekly digest", zap.Error(err))
		return
	}
}

// nextRun возвращает ближайший момент day/hour (UTC) строго после now
func nextRun(now time.Time, day time.Weekday, hour int) time.Time {
	now = now.UTC()
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	offset := (int(day) - int(now.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, offset)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}
