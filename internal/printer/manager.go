package printer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ovenfresh/labelpress/internal/config"
	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/logger"
)

var (
	ErrPrinterNotFound    = errors.New("printer not found")
	ErrPrinterOffline     = errors.New("printer is offline")
	ErrPrinterNotNetwork  = errors.New("printer has no network address")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrPrinterCannotPrint = errors.New("printer cannot print in current state")
)

const (
	defaultTCPPort        = 9100
	defaultNetworkTimeout = 10 * time.Second
)

// WebhookSender receives printer status-change notifications. Nil disables
// them.
type WebhookSender interface {
	SendPrinterStatusChange(printerID int64, name, oldStatus, newStatus string)
}

// Manager caches printer records and their TCP connections, runs the
// health-check loop, and streams rendered bytes to network devices. Virtual
// printers (no IP address) skip health probing entirely; their output is
// file-based.
type Manager struct {
	cfg         *config.PrintersConfig
	printers    map[int64]*db.Printer
	connections map[int64]net.Conn
	mu          sync.RWMutex
	webhooks    WebhookSender
	log         logger.Logger
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

func NewManager(cfg *config.PrintersConfig, webhooks WebhookSender, log logger.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		printers:    make(map[int64]*db.Printer),
		connections: make(map[int64]net.Conn),
		webhooks:    webhooks,
		log:         log,
		stopCh:      make(chan struct{}),
	}
}

// Start loads the printer cache and kicks off the health-check loop.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.Reload(ctx); err != nil {
		return err
	}
	m.wg.Add(1)
	go m.healthCheckLoop()
	return nil
}

func (m *Manager) Stop() {
	close(m.stopCh)

	m.mu.Lock()
	for id, conn := range m.connections {
		if conn != nil {
			conn.Close()
		}
		delete(m.connections, id)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// Reload refreshes the in-memory cache from the database. Called on start
// and after printer CRUD from the API layer.
func (m *Manager) Reload(ctx context.Context) error {
	printers, err := db.Printers.ListPrinters(ctx)
	if err != nil {
		return fmt.Errorf("failed to load printers: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.printers = make(map[int64]*db.Printer, len(printers))
	for _, p := range printers {
		if p.Port == 0 {
			p.Port = defaultTCPPort
		}
		m.printers[p.ID] = p
	}
	return nil
}

func (m *Manager) Get(id int64) (*db.Printer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.printers[id]
	if !ok {
		return nil, ErrPrinterNotFound
	}
	return p, nil
}

func (m *Manager) List() []*db.Printer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	printers := make([]*db.Printer, 0, len(m.printers))
	for _, p := range m.printers {
		printers = append(printers, p)
	}
	return printers
}

func (m *Manager) timeout() time.Duration {
	if m.cfg != nil && m.cfg.ConnectionTimeout > 0 {
		return m.cfg.ConnectionTimeout
	}
	return defaultNetworkTimeout
}

func (m *Manager) connect(id int64) (net.Conn, error) {
	m.mu.RLock()
	p, ok := m.printers[id]
	if !ok {
		m.mu.RUnlock()
		return nil, ErrPrinterNotFound
	}
	if conn, ok := m.connections[id]; ok && conn != nil {
		m.mu.RUnlock()
		return conn, nil
	}
	m.mu.RUnlock()

	if p.IPAddress == "" {
		return nil, ErrPrinterNotNetwork
	}

	address := fmt.Sprintf("%s:%d", p.IPAddress, p.Port)
	conn, err := net.DialTimeout("tcp", address, m.timeout())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	m.mu.Lock()
	m.connections[id] = conn
	m.mu.Unlock()

	return conn, nil
}

func (m *Manager) disconnect(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.connections[id]; ok {
		if conn != nil {
			conn.Close()
		}
		delete(m.connections, id)
	}
}

// SendBytes streams a rendered document to the printer over its cached TCP
// connection, reconnecting once on a stale socket. Every write carries a
// deadline so a wedged device cannot hang the caller.
func (m *Manager) SendBytes(ctx context.Context, id int64, payload []byte) error {
	conn, err := m.connect(id)
	if err != nil {
		if errors.Is(err, ErrPrinterNotFound) || errors.Is(err, ErrPrinterNotNetwork) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPrinterOffline, err)
	}

	deadline := time.Now().Add(m.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if _, err = conn.Write(payload); err != nil {
		// Stale pooled connection: reconnect and try once more.
		m.disconnect(id)
		conn, err = m.connect(id)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPrinterOffline, err)
		}
		_ = conn.SetDeadline(deadline)
		if _, err = conn.Write(payload); err != nil {
			m.disconnect(id)
			return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
	}

	return nil
}

// Print checks the device can accept work, delivers the payload, and bumps
// the print counters.
func (m *Manager) Print(ctx context.Context, id int64, payload []byte, labels int) error {
	p, err := m.Get(id)
	if err != nil {
		return err
	}
	if p.Status == db.PrinterStatusOffline {
		return ErrPrinterOffline
	}
	if p.Status == db.PrinterStatusInactive {
		return ErrPrinterCannotPrint
	}

	if err := m.SendBytes(ctx, id, payload); err != nil {
		m.setStatus(ctx, id, db.PrinterStatusOffline)
		return err
	}

	m.mu.Lock()
	if p, ok := m.printers[id]; ok {
		p.TotalPrints += int64(labels)
	}
	m.mu.Unlock()
	if err := db.Printers.IncrementPrints(ctx, id, labels); err != nil {
		m.log.Warn("failed to record print count",
			logger.Int64("printer_id", id), logger.Err(err))
	}

	return nil
}

// Pause marks a printer inactive so the optimizer and queue stop assigning
// work to it. The device itself is not contacted.
func (m *Manager) Pause(ctx context.Context, id int64) error {
	if _, err := m.Get(id); err != nil {
		return err
	}
	m.setStatus(ctx, id, db.PrinterStatusInactive)
	return nil
}

func (m *Manager) Resume(ctx context.Context, id int64) error {
	if _, err := m.Get(id); err != nil {
		return err
	}
	m.setStatus(ctx, id, db.PrinterStatusActive)
	return nil
}

func (m *Manager) setStatus(ctx context.Context, id int64, status string) {
	m.mu.Lock()
	p, ok := m.printers[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	oldStatus := p.Status
	p.Status = status
	now := time.Now()
	p.LastSeenAt = &now
	name := p.Name
	m.mu.Unlock()

	if err := db.Printers.UpdatePrinterStatus(ctx, id, status); err != nil {
		m.log.Warn("failed to persist printer status",
			logger.Int64("printer_id", id), logger.Err(err))
	}

	if oldStatus != status {
		m.log.Info("printer status changed",
			logger.Int64("printer_id", id),
			logger.String("old", oldStatus),
			logger.String("new", status))
		if m.webhooks != nil {
			m.webhooks.SendPrinterStatusChange(id, name, oldStatus, status)
		}
	}
}

// checkHealth probes one printer with a connect-and-close. Network printers
// flip between active and offline; paused and virtual printers are left
// alone.
func (m *Manager) checkHealth(ctx context.Context, id int64) {
	m.mu.RLock()
	p, ok := m.printers[id]
	m.mu.RUnlock()
	if !ok || p.IPAddress == "" || p.Status == db.PrinterStatusInactive {
		return
	}

	address := fmt.Sprintf("%s:%d", p.IPAddress, p.Port)
	conn, err := net.DialTimeout("tcp", address, m.timeout())
	if err != nil {
		m.disconnect(id)
		m.setStatus(ctx, id, db.PrinterStatusOffline)
		return
	}
	conn.Close()
	if p.Status == db.PrinterStatusOffline {
		m.setStatus(ctx, id, db.PrinterStatusActive)
	} else {
		// Still healthy; just refresh last-seen.
		m.mu.Lock()
		now := time.Now()
		p.LastSeenAt = &now
		m.mu.Unlock()
	}
}

func (m *Manager) CheckAll(ctx context.Context) {
	m.mu.RLock()
	ids := make([]int64, 0, len(m.printers))
	for id := range m.printers {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.checkHealth(ctx, id)
	}
}

func (m *Manager) healthCheckLoop() {
	defer m.wg.Done()

	interval := 30 * time.Second
	if m.cfg != nil && m.cfg.HealthCheckInterval > 0 {
		interval = m.cfg.HealthCheckInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := context.Background()
	m.CheckAll(ctx)

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}
