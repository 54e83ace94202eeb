package service

import (
	"sync"
	"time"

	"github.com/MedKhalil95/TrafficPrediction/internal/domain"
)

// DefaultDebounce is the quiet period before an auto-submission fires.
const DefaultDebounce = time.Second

// FormSync reconciles user-editable fields into one canonical
// PredictionRequest and coalesces rapid changes into a single submission.
// Only the most recent pending submission is honored; an earlier pending
// timer is cancelled, not queued.
type FormSync struct {
	delay  time.Duration
	submit func(domain.PredictionRequest)
	now    func() time.Time

	mu    sync.Mutex
	req   domain.PredictionRequest
	timer *time.Timer
}

// NewFormSync creates a controller that calls submit after changes have
// quiesced for delay. The initial request tracks the current wall clock.
func NewFormSync(delay time.Duration, submit func(domain.PredictionRequest)) *FormSync {
	f := &FormSync{
		delay:  delay,
		submit: submit,
		now:    time.Now,
	}
	f.SyncToCurrentTime()
	return f
}

// SetHour updates the hour field and schedules a debounced submission.
func (f *FormSync) SetHour(hour int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.req.Hour = hour
	f.scheduleLocked()
}

// SetDay updates the day field (0=Monday convention) and schedules a
// debounced submission.
func (f *FormSync) SetDay(day int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.req.Day = day
	f.scheduleLocked()
}

// SetCity updates the city field and schedules a debounced submission.
func (f *FormSync) SetCity(cityID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.req.CityID = cityID
	f.scheduleLocked()
}

// SetWeather updates the weather field and schedules a debounced submission.
func (f *FormSync) SetWeather(weather int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.req.Weather = weather
	f.scheduleLocked()
}

// Request returns the canonical request built from current field values.
func (f *FormSync) Request() domain.PredictionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.req
}

// DebouncedSubmit schedules a submission of the current request after the
// quiet period, superseding any pending one.
func (f *FormSync) DebouncedSubmit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduleLocked()
}

// Cancel drops any pending submission.
func (f *FormSync) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

// SyncToCurrentTime derives hour and day from the wall clock, rotating Go's
// Sunday-first weekday to the 0=Monday request convention.
func (f *FormSync) SyncToCurrentTime() {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.now()
	f.req.Hour = t.Hour()
	f.req.Day = RotateWeekday(t.Weekday())
}

// RotateWeekday converts a time.Weekday (Sunday=0) to the request day index
// (Monday=0).
func RotateWeekday(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func (f *FormSync) scheduleLocked() {
	if f.submit == nil {
		return
	}
	if f.timer != nil {
		f.timer.Stop()
	}
	req := f.req
	f.timer = time.AfterFunc(f.delay, func() {
		f.submit(req)
	})
}
