// Package connectivity отслеживает состояние связи с сервером.
//
// Два независимых сигнала: есть ли у машины сеть вообще (online) и отвечает
// ли сервер (reachability, скользящее среднее по последним запросам).
// Из них выводится общее состояние disconnected / connecting / connected.
package connectivity

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
)

// State общее состояние связи
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Config настройки монитора
type Config struct {
	Window        int     // сколько последних наблюдений учитывать
	Threshold     float64 // доля успешных запросов, с которой сервер считается доступным
	ProbeInterval time.Duration
	AutoSync      bool // вызывать OnReconnect при восстановлении связи
}

// DefaultConfig настройки по умолчанию
func DefaultConfig() Config {
	return Config{Window: 5, Threshold: 0.6, ProbeInterval: 15 * time.Second, AutoSync: true}
}

// Pinger проверка доступности сервера
type Pinger interface {
	Ping(ctx context.Context) error
}

// NetworkProbe сообщает, есть ли у машины сеть
type NetworkProbe func() bool

// Monitor монитор связи
type Monitor struct {
	pinger      Pinger
	probe       NetworkProbe
	logger      *slog.Logger
	window      *movingaverage.MovingAverage
	listeners   []func(prev, next State)
	onReconnect []func()
	cfg         Config
	state       State
	samples     int
	mu          sync.Mutex
	online      bool
	// был ли монитор в disconnected с момента последнего connected
	wasDisconnected bool
}

// Option настраивает Monitor
type Option func(*Monitor)

// WithNetworkProbe подменяет проверку сети (по умолчанию HasNetwork)
func WithNetworkProbe(p NetworkProbe) Option {
	return func(m *Monitor) { m.probe = p }
}

// NewMonitor создает монитор. Начальное состояние disconnected, поэтому
// первое подключение тоже запускает синхронизацию.
func NewMonitor(pinger Pinger, logger *slog.Logger, cfg Config, opts ...Option) *Monitor {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = DefaultConfig().Threshold
	}

	m := &Monitor{
		pinger:          pinger,
		probe:           HasNetwork,
		logger:          logger,
		cfg:             cfg,
		window:          movingaverage.New(cfg.Window),
		state:           StateDisconnected,
		wasDisconnected: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnChange подписка на любые смены состояния
func (m *Monitor) OnChange(fn func(prev, next State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// OnReconnect подписка на переход в connected после disconnected (только при AutoSync)
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = append(m.onReconnect, fn)
}

// SetOnline сигнал сети. Потеря сети сбрасывает окно доступности сервера.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online != online {
		m.logger.Info("Network signal changed", "online", online)
	}
	m.online = online
	if !online {
		m.window = movingaverage.New(m.cfg.Window)
		m.samples = 0
	}
	m.transition()
}

// RecordSuccess сервер ответил (любым осмысленным ответом)
func (m *Monitor) RecordSuccess() {
	m.record(1)
}

// RecordFailure сервер не ответил: сеть, таймаут, 5xx
func (m *Monitor) RecordFailure() {
	m.record(0)
}

// record без сети наблюдение игнорируется: окно всё равно сбросится
func (m *Monitor) record(v float64) {
	m.mu.Lock()
	if !m.online {
		m.mu.Unlock()
		return
	}
	m.window.Add(v)
	if m.samples < m.cfg.Window {
		m.samples++
	}
	m.transition()
}

// transition пересчитывает состояние; вызывается под m.mu и отпускает его
// перед вызовом подписчиков
func (m *Monitor) transition() {
	prev := m.state
	next := m.computeLocked()
	m.state = next

	var listeners []func(prev, next State)
	var reconnect []func()
	if prev != next {
		listeners = append(listeners, m.listeners...)
		if next == StateDisconnected {
			m.wasDisconnected = true
		}
		if next == StateConnected && m.wasDisconnected {
			m.wasDisconnected = false
			if m.cfg.AutoSync {
				reconnect = append(reconnect, m.onReconnect...)
			}
		}
	}
	m.mu.Unlock()

	if prev == next {
		return
	}
	m.logger.Info("Connectivity changed", "from", prev, "to", next)
	for _, fn := range listeners {
		fn(prev, next)
	}
	for _, fn := range reconnect {
		fn()
	}
}

func (m *Monitor) computeLocked() State {
	if !m.online {
		return StateDisconnected
	}
	if m.samples == 0 || m.window.Avg() < m.cfg.Threshold {
		return StateConnecting
	}
	return StateConnected
}

// State текущее общее состояние
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Online текущий сигнал сети
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Reachability доля успешных запросов в окне, 0 если наблюдений нет
func (m *Monitor) Reachability() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.samples == 0 {
		return 0
	}
	return m.window.Avg()
}

// Probe один цикл проверки: сеть, затем ping сервера
func (m *Monitor) Probe(ctx context.Context) State {
	online := m.probe()
	m.SetOnline(online)
	if !online || m.pinger == nil {
		return m.State()
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.pingTimeout())
	defer cancel()
	if err := m.pinger.Ping(pingCtx); err != nil {
		m.logger.Debug("Server ping failed", "error", err)
		m.RecordFailure()
	} else {
		m.RecordSuccess()
	}
	return m.State()
}

func (m *Monitor) pingTimeout() time.Duration {
	if m.cfg.ProbeInterval > 0 && m.cfg.ProbeInterval < 10*time.Second {
		return m.cfg.ProbeInterval
	}
	return 10 * time.Second
}

// Run периодически проверяет связь до отмены ctx
func (m *Monitor) Run(ctx context.Context) {
	interval := m.cfg.ProbeInterval
	if interval <= 0 {
		interval = DefaultConfig().ProbeInterval
	}

	m.Probe(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Connectivity monitor stopped")
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// HasNetwork есть ли поднятый не-loopback интерфейс с адресом
func HasNetwork() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
