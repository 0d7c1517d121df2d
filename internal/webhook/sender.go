// Package webhook delivers HMAC-signed JSON event notifications for job
// lifecycle and printer status changes through a bounded worker pool.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ovenfresh/labelpress/internal/db"
	"github.com/ovenfresh/labelpress/internal/logger"
)

type Event string

const (
	EventJobQueued            Event = "job_queued"
	EventJobStarted           Event = "job_started"
	EventJobCompleted         Event = "job_completed"
	EventJobFailed            Event = "job_failed"
	EventPrinterStatusChanged Event = "printer_status_changed"
)

type Payload struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Signature string    `json:"signature,omitempty"`
}

type JobEventData struct {
	JobID        int64  `json:"job_id"`
	SourceType   string `json:"source_type"`
	SourceID     string `json:"source_id"`
	ProfileID    int64  `json:"profile_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	OutputPath   string `json:"output_path,omitempty"`
}

type PrinterStatusData struct {
	PrinterID      int64     `json:"printer_id"`
	PrinterName    string    `json:"printer_name"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Timestamp      time.Time `json:"timestamp"`
}

type Config struct {
	RetryCount  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	WorkerCount int
	QueueSize   int
}

type task struct {
	webhook *db.Webhook
	payload *Payload
	attempt int
}

type WebhookStore interface {
	ListEnabledWebhooks(ctx context.Context) ([]*db.Webhook, error)
}

// Sender fans events out to every enabled webhook subscribed to them.
// Delivery is best-effort: a full queue drops, retries back off
// exponentially, and 4xx responses are not retried.
type Sender struct {
	store       WebhookStore
	httpClient  *http.Client
	retryCount  int
	retryDelay  time.Duration
	workerCount int
	queue       chan *task
	log         logger.Logger
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

func NewSender(store WebhookStore, cfg Config, log logger.Logger) *Sender {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	return &Sender{
		store:       store,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		retryCount:  cfg.RetryCount,
		retryDelay:  cfg.RetryDelay,
		workerCount: cfg.WorkerCount,
		queue:       make(chan *task, cfg.QueueSize),
		log:         log,
		stopCh:      make(chan struct{}),
	}
}

func (s *Sender) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

func (s *Sender) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// SendJobEvent notifies subscribers of a job lifecycle transition.
func (s *Sender) SendJobEvent(event string, job *db.LabelJob) {
	s.enqueue(Event(event), &JobEventData{
		JobID:        job.ID,
		SourceType:   job.SourceType,
		SourceID:     job.SourceID,
		ProfileID:    job.ProfileID,
		Status:       job.Status,
		ErrorMessage: job.ErrorMessage,
		OutputPath:   job.OutputPath,
	})
}

func (s *Sender) SendPrinterStatusChange(printerID int64, name, oldStatus, newStatus string) {
	s.enqueue(EventPrinterStatusChanged, &PrinterStatusData{
		PrinterID:      printerID,
		PrinterName:    name,
		PreviousStatus: oldStatus,
		NewStatus:      newStatus,
		Timestamp:      time.Now(),
	})
}

func (s *Sender) enqueue(event Event, data any) {
	webhooks, err := s.store.ListEnabledWebhooks(context.Background())
	if err != nil {
		s.log.Error("failed to list webhooks", logger.Err(err))
		return
	}

	for _, w := range webhooks {
		if !w.Subscribes(string(event)) {
			continue
		}
		t := &task{
			webhook: w,
			payload: &Payload{
				Event:     string(event),
				Timestamp: time.Now(),
				Data:      data,
			},
		}
		select {
		case s.queue <- t:
		default:
			s.log.Warn("webhook queue full, dropping event",
				logger.Int64("webhook_id", w.ID),
				logger.String("event", string(event)))
		}
	}
}

func (s *Sender) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			if err := s.sendWithRetry(t); err != nil {
				s.log.Warn("webhook delivery gave up",
					logger.Int64("webhook_id", t.webhook.ID),
					logger.String("event", t.payload.Event),
					logger.Int("attempts", t.attempt),
					logger.Err(err))
			}
		}
	}
}

func (s *Sender) sendWithRetry(t *task) error {
	var lastErr error
	for t.attempt < s.retryCount {
		t.attempt++

		err := s.send(t.webhook, t.payload)
		if err == nil {
			return nil
		}
		lastErr = err

		if isClientError(err) {
			return err
		}

		if t.attempt < s.retryCount {
			backoff := s.retryDelay * time.Duration(1<<(t.attempt-1))
			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *Sender) send(w *db.Webhook, payload *Payload) error {
	dataBytes, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	if w.Secret != "" {
		payload.Signature = Sign(dataBytes, w.Secret)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", payload.Signature)
	req.Header.Set("X-Webhook-Event", payload.Event)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http error: %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 signature receivers verify payloads
// against.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func isClientError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "http error: 4")
}
