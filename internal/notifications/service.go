package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shopflow/internal/config"
)

const userAgent = "shopflow/0.1.0"

// EventType enumerates the notifications the engine emits.
type EventType string

const (
	EventStageChanged       EventType = "stage_changed"
	EventOverrideUsed       EventType = "override_used"
	EventBottleneckDetected EventType = "bottleneck_detected"
	EventTest               EventType = "test"
)

// Event is one notification.
type Event struct {
	Type         EventType
	ShopID       string
	JobID        int64
	Reference    string
	FromStage    string
	ToStage      string
	Movement     string
	Reason       string
	AuthorizedBy string
	// Bottlenecks lists the stage names over capacity for bottleneck events.
	Bottlenecks []string
}

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event) error
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
		enabled: map[EventType]bool{
			EventStageChanged:       cfg.Notifications.Transitions,
			EventOverrideUsed:       cfg.Notifications.Overrides,
			EventBottleneckDetected: cfg.Notifications.Bottlenecks,
			EventTest:               true,
		},
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
	enabled  map[EventType]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event) error {
	if !n.enabled[event.Type] {
		return nil
	}
	data, ok := format(event)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func format(event Event) (payload, bool) {
	job := jobLabel(event)
	switch event.Type {
	case EventStageChanged:
		message := fmt.Sprintf("%s moved %s → %s", job, event.FromStage, event.ToStage)
		if event.Movement != "" && event.Movement != "forward" {
			message = fmt.Sprintf("%s (%s)", message, event.Movement)
		}
		return payload{
			title:   "Shopflow - Stage Changed",
			message: message,
			tags:    []string{"shopflow", "stage", event.ToStage},
		}, true
	case EventOverrideUsed:
		message := fmt.Sprintf("%s forced %s → %s", job, event.FromStage, event.ToStage)
		if who := strings.TrimSpace(event.AuthorizedBy); who != "" {
			message = fmt.Sprintf("%s\nAuthorized by: %s", message, who)
		}
		if reason := strings.TrimSpace(event.Reason); reason != "" {
			message = fmt.Sprintf("%s\nReason: %s", message, reason)
		}
		return payload{
			title:    "Shopflow - Override Used",
			message:  message,
			tags:     []string{"shopflow", "override", "warning"},
			priority: "high",
		}, true
	case EventBottleneckDetected:
		if len(event.Bottlenecks) == 0 {
			return payload{}, false
		}
		return payload{
			title:    "Shopflow - Bottleneck",
			message:  fmt.Sprintf("Shop %s over capacity: %s", event.ShopID, strings.Join(event.Bottlenecks, ", ")),
			tags:     []string{"shopflow", "bottleneck", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Shopflow - Test",
			message:  "Notification system test",
			tags:     []string{"shopflow", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func jobLabel(event Event) string {
	if ref := strings.TrimSpace(event.Reference); ref != "" {
		return fmt.Sprintf("Job %d (%s)", event.JobID, ref)
	}
	return fmt.Sprintf("Job %d", event.JobID)
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

func (noopService) Publish(context.Context, Event) error { return nil }

// Noop returns a Service that discards every event.
func Noop() Service {
	return noopService{}
}

// SendTest publishes a test event using cfg. It reports false without an
// error when no ntfy topic is configured.
func SendTest(ctx context.Context, cfg *config.Config) (bool, error) {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return false, nil
	}
	if err := NewService(cfg).Publish(ctx, Event{Type: EventTest}); err != nil {
		return false, err
	}
	return true, nil
}
