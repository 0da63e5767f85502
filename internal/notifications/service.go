package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"sumika/internal/config"
	"sumika/internal/diff"
)

const userAgent = "Sumika/0.1.0"

// Service defines the notification surface exposed to the scheduler.
type Service interface {
	NotifyChanges(ctx context.Context, runID string, counts map[string]diff.Counts) error
	NotifyRunCompleted(ctx context.Context, runID string, failedStages []string, duration time.Duration) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyChanges(ctx context.Context, runID string, counts map[string]diff.Counts) error {
	categories := make([]string, 0, len(counts))
	for category := range counts {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var builder strings.Builder
	for _, category := range categories {
		c := counts[category]
		if !c.HasChanges() {
			continue
		}
		fmt.Fprintf(&builder, "%s: %d new, %d updated, %d removed\n",
			category, c.New, c.Updated, c.Removed)
	}
	message := strings.TrimSpace(builder.String())
	if message == "" {
		message = "No listing changes"
	}

	data := payload{
		title:    "Sumika - Listings Changed",
		message:  message,
		tags:     []string{"sumika", "changes"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, runID string, failedStages []string, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if len(failedStages) == 0 {
		title = "Sumika - Run Complete"
		message = fmt.Sprintf("Run %s finished in %s", runID, duration)
	} else {
		title = "Sumika - Run Complete (degraded)"
		message = fmt.Sprintf("Run %s finished in %s, skipped stages: %s",
			runID, duration, strings.Join(failedStages, ", "))
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"sumika", "run", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Sumika - Error",
		message:  builder.String(),
		tags:     []string{"sumika", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Sumika - Test",
		message:  "Notification system test",
		tags:     []string{"sumika", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyChanges(context.Context, string, map[string]diff.Counts) error { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, []string, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
