// Package cron はメッセージ注入用の永続ジョブスケジューラを提供する。
// ジョブはバージョン付きJSONストアに保存され、固定間隔か cron 式で発火する。
package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/Nyukimin/personaclaw/pkg/logger"
)

const storeVersion = 1

// ScheduleKindEvery は固定間隔、ScheduleKindCron は cron 式のスケジュール
const (
	ScheduleKindEvery = "every"
	ScheduleKindCron  = "cron"
)

// Handler は発火したジョブを受け取るコールバック
type Handler func(job CronJob)

// CronSchedule はジョブの発火スケジュール
type CronSchedule struct {
	Kind    string `json:"kind"`
	EveryMS *int64 `json:"every_ms,omitempty"`
	Expr    string `json:"expr,omitempty"`
}

// CronJob は登録済みジョブ
type CronJob struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Schedule  CronSchedule `json:"schedule"`
	Message   string       `json:"message"`
	Deliver   bool         `json:"deliver"`
	Channel   string       `json:"channel"`
	Kind      string       `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
	LastRun   *time.Time   `json:"last_run,omitempty"`
	NextRun   *time.Time   `json:"next_run,omitempty"`
}

// cronStore はストアファイルのフォーマット
type cronStore struct {
	Version int       `json:"version"`
	Jobs    []CronJob `json:"jobs"`
}

// CronService はジョブの永続化と発火を担当
type CronService struct {
	storePath string
	handler   Handler

	mu     sync.Mutex
	jobs   []CronJob
	loaded bool

	tickInterval time.Duration
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewCronService は新しいCronServiceを作成
func NewCronService(storePath string, handler Handler) *CronService {
	return &CronService{
		storePath:    storePath,
		handler:      handler,
		tickInterval: time.Second,
	}
}

// Load はストアからジョブを読み込む。ファイルが無ければ空で開始し、
// 壊れている場合は空のストアに復旧する
func (s *CronService) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *CronService) loadLocked() error {
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.jobs = nil
			s.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read cron store: %w", err)
	}

	var store cronStore
	if err := json.Unmarshal(data, &store); err != nil {
		logger.WarnCF("cron", "corrupt cron store, repairing", map[string]interface{}{
			"path":  s.storePath,
			"error": err.Error(),
		})
		s.jobs = nil
		s.loaded = true
		return s.saveLocked()
	}

	s.jobs = store.Jobs
	s.loaded = true
	return nil
}

func (s *CronService) saveLocked() error {
	jobs := s.jobs
	if jobs == nil {
		jobs = []CronJob{}
	}

	data, err := json.MarshalIndent(cronStore{Version: storeVersion, Jobs: jobs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cron store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.storePath), 0755); err != nil {
		return fmt.Errorf("failed to create cron store directory: %w", err)
	}

	// メッセージ本文を含むため所有者のみ読み書き可
	if err := os.WriteFile(s.storePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write cron store: %w", err)
	}

	return nil
}

// AddJob はジョブを登録して永続化する
func (s *CronService) AddJob(name string, schedule CronSchedule, message string, deliver bool, channel, kind string) (CronJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		if err := s.loadLocked(); err != nil {
			return CronJob{}, err
		}
	}

	now := time.Now()
	next, err := nextRun(schedule, now)
	if err != nil {
		return CronJob{}, err
	}

	job := CronJob{
		ID:        uuid.NewString()[:8],
		Name:      name,
		Schedule:  schedule,
		Message:   message,
		Deliver:   deliver,
		Channel:   channel,
		Kind:      kind,
		CreatedAt: now,
		NextRun:   &next,
	}

	s.jobs = append(s.jobs, job)
	if err := s.saveLocked(); err != nil {
		return CronJob{}, err
	}

	logger.InfoCF("cron", "job added", map[string]interface{}{
		"id":   job.ID,
		"name": job.Name,
		"kind": job.Schedule.Kind,
	})

	return job, nil
}

// RemoveJob はジョブを削除する。見つかったかどうかを返す
func (s *CronService) RemoveJob(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		if err := s.loadLocked(); err != nil {
			return false, err
		}
	}

	for i, job := range s.jobs {
		if job.ID == id {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			if err := s.saveLocked(); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	return false, nil
}

// ListJobs は登録済みジョブを返す
func (s *CronService) ListJobs() []CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]CronJob, len(s.jobs))
	copy(jobs, s.jobs)
	return jobs
}

// Start は発火ループを開始する
func (s *CronService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.runDue(now)
			}
		}
	}()
}

// Stop は発火ループを停止して完了を待つ
func (s *CronService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// runDue は発火時刻を過ぎたジョブを実行する。
// ハンドラはロックの外で呼ぶ
func (s *CronService) runDue(now time.Time) {
	s.mu.Lock()

	var due []CronJob
	for i := range s.jobs {
		job := &s.jobs[i]
		if job.NextRun == nil || job.NextRun.After(now) {
			continue
		}

		last := now
		job.LastRun = &last

		if next, err := nextRun(job.Schedule, now); err == nil {
			job.NextRun = &next
		} else {
			job.NextRun = nil
		}

		due = append(due, *job)
	}

	if len(due) > 0 {
		if err := s.saveLocked(); err != nil {
			logger.ErrorCF("cron", "failed to persist cron store", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		logger.InfoCF("cron", "job fired", map[string]interface{}{
			"id":   job.ID,
			"name": job.Name,
		})
		if s.handler != nil {
			s.handler(job)
		}
	}
}

// nextRun はスケジュールから次の発火時刻を計算する
func nextRun(schedule CronSchedule, now time.Time) (time.Time, error) {
	switch schedule.Kind {
	case ScheduleKindEvery:
		if schedule.EveryMS == nil || *schedule.EveryMS <= 0 {
			return time.Time{}, fmt.Errorf("every schedule requires a positive interval")
		}
		return now.Add(time.Duration(*schedule.EveryMS) * time.Millisecond), nil

	case ScheduleKindCron:
		if !gronx.New().IsValid(schedule.Expr) {
			return time.Time{}, fmt.Errorf("invalid cron expression: %s", schedule.Expr)
		}
		return gronx.NextTickAfter(schedule.Expr, now, false)

	default:
		return time.Time{}, fmt.Errorf("unknown schedule kind: %s", schedule.Kind)
	}
}
