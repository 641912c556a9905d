package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CounterAuditor is implemented by service.BookingService.
type CounterAuditor interface {
	AuditPendingCounters(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	auditor  CounterAuditor
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewScheduler создаёт новый планировщик. interval <= 0 отключает аудит.
func NewScheduler(auditor CounterAuditor, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		auditor:  auditor,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Background scheduler disabled")
		close(s.done)
		return
	}

	s.logger.Info("Starting background scheduler", zap.Duration("audit_interval", s.interval))

	go s.runCounterAuditTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	<-s.done
}

// runCounterAuditTask периодически сверяет счётчики pending-заявок с сессиями
func (s *Scheduler) runCounterAuditTask(ctx context.Context) {
	defer close(s.done)

	// Первый запуск сразу при старте
	s.auditCounters(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.auditCounters(ctx)
		case <-s.stopChan:
			s.logger.Info("Counter audit task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Counter audit task cancelled")
			return
		}
	}
}

func (s *Scheduler) auditCounters(ctx context.Context) {
	drift, err := s.auditor.AuditPendingCounters(ctx)
	if err != nil {
		s.logger.Error("Failed to audit pending counters", zap.Error(err))
		return
	}

	if drift > 0 {
		s.logger.Warn("Pending counter audit found drift", zap.Int("mentors", drift))
		return
	}
	s.logger.Debug("Pending counter audit completed")
}
