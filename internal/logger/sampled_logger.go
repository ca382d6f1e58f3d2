package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Categories of dashboard events that can arrive in bursts.
const (
	// CategoryLateCallback covers clicks on dashboards that already expired.
	CategoryLateCallback = "late_callback"
	// CategoryRefreshFallback covers renders served from the cached app list.
	CategoryRefreshFallback = "refresh_fallback"
	// CategoryBusyRejection covers double clicks rejected by the in-flight gate.
	CategoryBusyRejection = "busy_rejection"
	// CategoryPanelEdit covers failed edits of the dashboard message.
	CategoryPanelEdit = "panel_edit"
	// CategoryGateway covers gateway connect and resume chatter.
	CategoryGateway = "gateway"
)

// SampledLogger drops repeats of noisy categories. Within maxFrequency of
// the previous line a category may burst burstAllowance times, then only
// every 1/sampleRate-th message is kept. Uncategorised calls pass through.
type SampledLogger struct {
	base     Logger
	mu       *sync.RWMutex
	samplers map[string]*LogSampler
}

// LogSampler holds the sampling state of one category.
type LogSampler struct {
	maxFrequency   time.Duration
	burstAllowance int64
	sampleRate     float64

	lastLogTime  atomic.Int64
	burstCounter atomic.Int64
	messageCount atomic.Int64

	total   atomic.Int64
	sampled atomic.Int64
	dropped atomic.Int64
}

// SamplerStats holds statistics for a log sampler
type SamplerStats struct {
	Name            string  `json:"name"`
	TotalMessages   int64   `json:"total_messages"`
	SampledMessages int64   `json:"sampled_messages"`
	DroppedMessages int64   `json:"dropped_messages"`
	CurrentRate     float64 `json:"current_rate"`
}

func NewSampledLogger(base Logger) *SampledLogger {
	return &SampledLogger{
		base:     base,
		mu:       &sync.RWMutex{},
		samplers: make(map[string]*LogSampler),
	}
}

// NewDashboardLogger returns a SampledLogger tuned for dashboard traffic.
func NewDashboardLogger(base Logger) *SampledLogger {
	return NewSampledLogger(base).
		WithSampler(CategoryLateCallback, time.Second, 3, 0.1).
		WithSampler(CategoryRefreshFallback, 5*time.Second, 2, 0.2).
		WithSampler(CategoryBusyRejection, time.Second, 5, 0.1).
		WithSampler(CategoryPanelEdit, time.Second, 3, 0.5).
		WithSampler(CategoryGateway, 10*time.Second, 5, 1.0)
}

func (s *SampledLogger) WithSampler(name string, maxFreq time.Duration, burstAllowance int, sampleRate float64) *SampledLogger {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samplers[name] = &LogSampler{
		maxFrequency:   maxFreq,
		burstAllowance: int64(burstAllowance),
		sampleRate:     sampleRate,
	}
	return s
}

func (s *SampledLogger) sampler(category string) *LogSampler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.samplers[category]
}

func (s *SampledLogger) shouldLog(category string) bool {
	sampler := s.sampler(category)
	if sampler == nil {
		return true
	}
	return sampler.allow(time.Now().UnixNano())
}

func (ls *LogSampler) allow(now int64) bool {
	ls.total.Add(1)

	if now-ls.lastLogTime.Load() >= ls.maxFrequency.Nanoseconds() {
		ls.burstCounter.Store(1)
		return ls.keep(now)
	}

	if ls.burstCounter.Load() < ls.burstAllowance {
		ls.burstCounter.Add(1)
		return ls.keep(now)
	}

	if ls.sampleRate <= 0 {
		ls.dropped.Add(1)
		return false
	}

	if float64(ls.messageCount.Add(1))*ls.sampleRate >= 1.0 {
		ls.messageCount.Store(0)
		return ls.keep(now)
	}

	ls.dropped.Add(1)
	return false
}

func (ls *LogSampler) keep(now int64) bool {
	ls.lastLogTime.Store(now)
	ls.sampled.Add(1)
	return true
}

// LogWithCategory logs msg at level unless the category's sampler drops it.
// Kept lines carry the sampler counters.
func (s *SampledLogger) LogWithCategory(level logrus.Level, category, msg string, fields map[string]interface{}) {
	if !s.shouldLog(category) {
		return
	}

	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["category"] = category
	if sampler := s.sampler(category); sampler != nil {
		if dropped := sampler.dropped.Load(); dropped > 0 {
			fields["_sampling_dropped"] = dropped
			fields["_sampling_total"] = sampler.total.Load()
		}
	}
	s.base.WithFields(fields).Log(level, msg)
}

func (s *SampledLogger) InfoWithCategory(category, msg string, fields map[string]interface{}) {
	s.LogWithCategory(logrus.InfoLevel, category, msg, fields)
}

func (s *SampledLogger) WarnWithCategory(category, msg string, fields map[string]interface{}) {
	s.LogWithCategory(logrus.WarnLevel, category, msg, fields)
}

func (s *SampledLogger) DebugWithCategory(category, msg string, fields map[string]interface{}) {
	s.LogWithCategory(logrus.DebugLevel, category, msg, fields)
}

// ErrorWithCategory is never sampled.
func (s *SampledLogger) ErrorWithCategory(category, msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["category"] = category
	s.base.WithFields(fields).Error(msg)
}

func (s *SampledLogger) GetSamplerStats() map[string]SamplerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]SamplerStats, len(s.samplers))
	for name, sampler := range s.samplers {
		st := SamplerStats{
			Name:            name,
			TotalMessages:   sampler.total.Load(),
			SampledMessages: sampler.sampled.Load(),
			DroppedMessages: sampler.dropped.Load(),
		}
		if st.TotalMessages > 0 {
			st.CurrentRate = float64(st.SampledMessages) / float64(st.TotalMessages)
		}
		stats[name] = st
	}
	return stats
}

// Derived loggers share the parent's samplers.
func (s *SampledLogger) derive(base Logger) *SampledLogger {
	return &SampledLogger{base: base, mu: s.mu, samplers: s.samplers}
}

func (s *SampledLogger) WithFields(fields map[string]interface{}) Logger {
	return s.derive(s.base.WithFields(fields))
}

// With is WithFields keeping the concrete type.
func (s *SampledLogger) With(fields map[string]interface{}) *SampledLogger {
	return s.derive(s.base.WithFields(fields))
}

func (s *SampledLogger) WithField(key string, value interface{}) Logger {
	return s.derive(s.base.WithField(key, value))
}

func (s *SampledLogger) WithError(err error) Logger {
	return s.derive(s.base.WithError(err))
}

func (s *SampledLogger) Debug(args ...interface{})                   { s.base.Debug(args...) }
func (s *SampledLogger) Info(args ...interface{})                    { s.base.Info(args...) }
func (s *SampledLogger) Warn(args ...interface{})                    { s.base.Warn(args...) }
func (s *SampledLogger) Error(args ...interface{})                   { s.base.Error(args...) }
func (s *SampledLogger) Log(level logrus.Level, args ...interface{}) { s.base.Log(level, args...) }
func (s *SampledLogger) Debugf(format string, args ...interface{})   { s.base.Debugf(format, args...) }
func (s *SampledLogger) Infof(format string, args ...interface{})    { s.base.Infof(format, args...) }
func (s *SampledLogger) Warnf(format string, args ...interface{})    { s.base.Warnf(format, args...) }
func (s *SampledLogger) Errorf(format string, args ...interface{})   { s.base.Errorf(format, args...) }
func (s *SampledLogger) Fatal(args ...interface{})                   { s.base.Fatal(args...) }
