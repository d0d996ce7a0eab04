package mining

import (
	"sync"
	"time"
)

// Timer: отменяемый одноразовый таймер
type Timer interface {
	Stop()
}

// Scheduler однократно вызывает fn через delay, если таймер не остановлен.
// Цикл автоудара перевзводит таймер после каждого удара сам.
type Scheduler interface {
	After(delay time.Duration, fn func()) Timer
}

// TimerScheduler: реализация Scheduler на time.AfterFunc
type TimerScheduler struct{}

// After вызывает fn в отдельной горутине через delay
func (TimerScheduler) After(delay time.Duration, fn func()) Timer {
	t := &afterTimer{}
	t.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		stopped := t.stopped
		t.mu.Unlock()
		if !stopped {
			fn()
		}
	})
	return t
}

type afterTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// Stop отменяет вызов; повторный вызов безопасен
func (t *afterTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.timer.Stop()
}

// holdLoop: цикл автоудара, принадлежащий одной сессии.
// Колбэк таймера сверяет себя с session.loop под блокировкой системы,
// поэтому тик, пришедший после остановки, ничего не делает и не перевзводится.
type holdLoop struct {
	timer    Timer
	interval time.Duration
}

func (l *holdLoop) stop() {
	if l != nil && l.timer != nil {
		l.timer.Stop()
	}
}

// nextSwingDelay: сколько ждать до следующего разрешённого удара.
// Если удар не засчитан и окно уже прошло, ждём полный интервал.
func nextSwingDelay(lastHit, now time.Time, interval time.Duration) time.Duration {
	if lastHit.IsZero() {
		return interval
	}
	if delay := interval - now.Sub(lastHit); delay > 0 {
		return delay
	}
	return interval
}
