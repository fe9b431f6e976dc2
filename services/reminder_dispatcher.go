package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/metrics"
	"habitCoachAPI/internal/notification"
)

type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]string) error
}

// ReminderDispatcher sends one push per habit per local day at the habit's
// reminder time, skipping days that are already done.
type ReminderDispatcher struct {
	db           *pgxpool.Pool
	pushProvider PushProvider
	log          *logger.Logger
	workers      int
	interval     time.Duration
	jobQueue     chan *notification.Reminder
	stopChan     chan struct{}
	wg           sync.WaitGroup
	now          func() time.Time
}

func NewReminderDispatcher(db *pgxpool.Pool, provider PushProvider, log *logger.Logger) *ReminderDispatcher {
	return &ReminderDispatcher{
		db:           db,
		pushProvider: provider,
		log:          log.With("service", "reminders"),
		workers:      5,
		interval:     time.Minute,
		jobQueue:     make(chan *notification.Reminder, 100),
		stopChan:     make(chan struct{}),
		now:          time.Now,
	}
}

// Start launches the worker pool and the minute ticker.
func (d *ReminderDispatcher) Start() {
	d.startWorkers()

	d.wg.Add(1)
	go d.scheduleLoop()
}

func (d *ReminderDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

func (d *ReminderDispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *ReminderDispatcher) scheduleLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := d.ProcessDue(ctx)
			cancel()
			if err != nil {
				d.log.Error("reminder scan failed", "error", err)
			} else if n > 0 {
				d.log.Info("reminders queued", "count", n)
			}
		case <-d.stopChan:
			return
		}
	}
}

// ProcessDue finds habits whose reminder time matches their owner's local
// clock, claims today's delivery slot and queues a push. The claim is taken
// before sending so concurrent instances never double-send.
func (d *ReminderDispatcher) ProcessDue(ctx context.Context) (int, error) {
	rows, err := d.db.Query(ctx, `
		WITH due AS (
			SELECT h.id, h.user_id, h.name, h.target_per_day,
			       ($1::timestamptz AT TIME ZONE u.timezone)::date AS local_date
			FROM habits h
			JOIN users u ON u.id = h.user_id
			WHERE h.reminder_time = to_char($1::timestamptz AT TIME ZONE u.timezone, 'HH24:MI')
			  AND h.deleted_at IS NULL
			  AND h.is_archived = FALSE
		)
		SELECT due.id, due.user_id, due.name, to_char(due.local_date, 'YYYY-MM-DD')
		FROM due
		WHERE NOT EXISTS (
			SELECT 1 FROM day_records dr
			WHERE dr.habit_id = due.id
			  AND dr.log_date = due.local_date
			  AND dr.count >= GREATEST(due.target_per_day, 1)
		)
		AND NOT EXISTS (
			SELECT 1 FROM reminder_deliveries rd
			WHERE rd.habit_id = due.id AND rd.local_date = due.local_date
		)
		LIMIT 500
	`, d.now())
	if err != nil {
		return 0, fmt.Errorf("failed to find due reminders: %w", err)
	}

	var due []*notification.Reminder
	for rows.Next() {
		r := &notification.Reminder{}
		if err := rows.Scan(&r.HabitID, &r.UserID, &r.HabitName, &r.LocalDate); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan due reminder: %w", err)
		}
		due = append(due, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate due reminders: %w", err)
	}

	queued := 0
	for _, r := range due {
		tag, err := d.db.Exec(ctx, `
			INSERT INTO reminder_deliveries (habit_id, local_date)
			VALUES ($1, $2::date)
			ON CONFLICT DO NOTHING
		`, r.HabitID, r.LocalDate)
		if err != nil {
			d.log.Warn("failed to claim reminder", "habit_id", r.HabitID, "error", err)
			continue
		}
		if tag.RowsAffected() == 0 {
			continue
		}

		r.Tokens, err = d.deviceTokens(ctx, r)
		if err != nil {
			d.log.Warn("failed to load device tokens", "user_id", r.UserID, "error", err)
			continue
		}
		if len(r.Tokens) == 0 {
			continue
		}
		d.Dispatch(r)
		queued++
	}
	return queued, nil
}

func (d *ReminderDispatcher) deviceTokens(ctx context.Context, r *notification.Reminder) ([]notification.DeviceToken, error) {
	rows, err := d.db.Query(ctx, `
		SELECT id, user_id, token, platform, created_at
		FROM device_tokens
		WHERE user_id = $1
	`, r.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.Platform, &t.CreatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// Dispatch queues a reminder, giving up after five seconds on a full queue.
func (d *ReminderDispatcher) Dispatch(r *notification.Reminder) {
	select {
	case d.jobQueue <- r:
	case <-time.After(5 * time.Second):
		d.log.Warn("reminder queue full, dropping", "habit_id", r.HabitID)
		metrics.RemindersSent.WithLabelValues("dropped").Inc()
	}
}

func (d *ReminderDispatcher) processJob(r *notification.Reminder) {
	if d.pushProvider == nil {
		d.log.Debug("push provider not configured, skipping reminder", "habit_id", r.HabitID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	title := fmt.Sprintf("Time for %s", r.HabitName)
	body := "A quick check-in keeps your streak alive."
	data := map[string]string{
		"type":       "habit_reminder",
		"habit_id":   r.HabitID.String(),
		"local_date": r.LocalDate,
	}

	if err := d.pushProvider.SendPush(ctx, r.Tokens, title, body, data); err != nil {
		metrics.RemindersSent.WithLabelValues("failed").Inc()
		d.log.Warn("reminder push failed", "habit_id", r.HabitID, "user_id", r.UserID, "error", err)
		return
	}
	metrics.RemindersSent.WithLabelValues("sent").Inc()
}

// Stop drains nothing: queued but unsent reminders are dropped. Their
// delivery slot stays claimed for the day.
func (d *ReminderDispatcher) Stop() {
	d.log.Info("stopping reminder dispatcher")
	close(d.stopChan)
	d.wg.Wait()
	d.log.Info("reminder dispatcher stopped")
}
