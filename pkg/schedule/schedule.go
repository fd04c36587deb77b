// Package schedule fires account posts at fixed local times every day.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"carouselbot/pkg/config"
)

// RunFunc posts for one account.
type RunFunc func(ctx context.Context, account config.Account)

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

type Scheduler struct {
	cron   *cron.Cron
	loc    *time.Location
	logger *zap.Logger

	mu    sync.Mutex
	ctx   context.Context
	names map[cron.EntryID]string
}

// New builds a scheduler in loc. A run still in progress when its next slot
// comes up makes that slot be skipped; panics are logged and recovered.
func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		loc:    loc,
		logger: logger,
		ctx:    context.Background(),
		names:  make(map[cron.EntryID]string),
	}
}

// ParseTime splits "HH:MM" into hour and minute.
func ParseTime(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("post time %q is not HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("post time %q has an invalid hour", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || len(m) != 2 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("post time %q has an invalid minute", s)
	}
	return hour, minute, nil
}

// Spec turns "HH:MM" into a daily cron expression.
func Spec(postTime string) (string, error) {
	hour, minute, err := ParseTime(postTime)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// AddAccount registers one job per post time of account.
func (s *Scheduler) AddAccount(account config.Account, run RunFunc) error {
	for _, t := range account.PostTimes {
		spec, err := Spec(t)
		if err != nil {
			return fmt.Errorf("account %s: %w", account.Name, err)
		}
		name := fmt.Sprintf("Post for %s at %s", account.Name, t)
		a := account
		id, err := s.cron.AddFunc(spec, func() {
			s.logger.Info("scheduled run", zap.String("job", name))
			run(s.runContext(), a)
		})
		if err != nil {
			return fmt.Errorf("account %s: %w", account.Name, err)
		}

		s.mu.Lock()
		s.names[id] = name
		s.mu.Unlock()
		s.logger.Info("scheduled", zap.String("account", account.Name), zap.String("time", t), zap.String("timezone", s.loc.String()))
	}
	return nil
}

// Len is the number of registered jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

type Upcoming struct {
	Name string
	Next time.Time
}

// Upcoming lists the next n runs after now, soonest first.
func (s *Scheduler) Upcoming(now time.Time, n int) []Upcoming {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Upcoming
	for _, e := range s.cron.Entries() {
		out = append(out, Upcoming{Name: s.names[e.ID], Next: e.Schedule.Next(now.In(s.loc))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Next.Equal(out[j].Next) {
			return out[i].Name < out[j].Name
		}
		return out[i].Next.Before(out[j].Next)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Run starts the jobs and blocks until ctx is done. It then stops the
// scheduler and waits for jobs in flight.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	for _, u := range s.Upcoming(time.Now(), 5) {
		s.logger.Info("upcoming", zap.String("job", u.Name), zap.String("at", u.Next.Format("2006-01-02 15:04:05 MST")))
	}
	s.logger.Info("starting scheduler", zap.String("timezone", s.loc.String()), zap.Int("jobs", s.Len()))

	s.cron.Start()
	<-ctx.Done()

	s.logger.Info("shutting down scheduler")
	<-s.cron.Stop().Done()
	return nil
}
