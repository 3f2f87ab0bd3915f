// Package notification texts patients when their health requests and
// medicine orders move. It listens on the event stream, renders a
// bilingual template and hands the message to an SMSSender.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/events"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/locale"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one outbound SMS.
type Notification struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Recipient  string     `json:"recipient"`
	Body       string     `json:"body"`
	TemplateID string     `json:"templateId"`
	EventID    string     `json:"eventId"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogSender writes messages to the log instead of a gateway.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info().Str("to", to).Str("body", body).Msg("sms")
	return nil
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

// Template is a message body in both languages. Placeholders are written
// {{key}}.
type Template struct {
	ID   string      `json:"id"`
	Body locale.Text `json:"body"`
}

type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
	return e
}

var builtIn = []Template{
	{ID: "welcome", Body: locale.Text{
		English: "Welcome to ASHASEVA, {{name}}. Your patient ID is {{id}}.",
		Telugu:  "ASHASEVA కు స్వాగతం, {{name}}. మీ రోగి ఐడి {{id}}.",
	}},
	{ID: "request-reviewed", Body: locale.Text{
		English: "{{name}}, a doctor has reviewed your health request {{entity}}.",
		Telugu:  "{{name}}, డాక్టర్ మీ ఆరోగ్య అభ్యర్థన {{entity}} ను సమీక్షించారు.",
	}},
	{ID: "request-urgent", Body: locale.Text{
		English: "{{name}}, your health request {{entity}} was marked urgent. Your ASHA worker will contact you.",
		Telugu:  "{{name}}, మీ ఆరోగ్య అభ్యర్థన {{entity}} అత్యవసరంగా గుర్తించబడింది. మీ ASHA కార్యకర్త మిమ్మల్ని సంప్రదిస్తారు.",
	}},
	{ID: "request-completed", Body: locale.Text{
		English: "{{name}}, your health request {{entity}} is completed.",
		Telugu:  "{{name}}, మీ ఆరోగ్య అభ్యర్థన {{entity}} పూర్తయింది.",
	}},
	{ID: "order-prescribed", Body: locale.Text{
		English: "{{name}}, your doctor ordered medicines for you. Order {{entity}}.",
		Telugu:  "{{name}}, మీ డాక్టర్ మీ కోసం మందులు ఆర్డర్ చేశారు. ఆర్డర్ {{entity}}.",
	}},
	{ID: "order-confirmed", Body: locale.Text{
		English: "{{name}}, your medicine order {{entity}} is confirmed.",
		Telugu:  "{{name}}, మీ మందుల ఆర్డర్ {{entity}} నిర్ధారించబడింది.",
	}},
	{ID: "order-delivering", Body: locale.Text{
		English: "{{name}}, your medicine order {{entity}} is out for delivery.",
		Telugu:  "{{name}}, మీ మందుల ఆర్డర్ {{entity}} డెలివరీ కోసం బయలుదేరింది.",
	}},
	{ID: "order-delivered", Body: locale.Text{
		English: "{{name}}, your medicine order {{entity}} was delivered.",
		Telugu:  "{{name}}, మీ మందుల ఆర్డర్ {{entity}} డెలివరీ చేయబడింది.",
	}},
}

func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

func (e *TemplateEngine) Has(templateID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.templates[templateID]
	return ok
}

// Render fills the template in both languages, Telugu first. Keys missing
// from data are left as written.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (string, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q not found", templateID)
	}

	te, en := t.Body.Telugu, t.Body.English
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		te = strings.ReplaceAll(te, placeholder, v)
		en = strings.ReplaceAll(en, placeholder, v)
	}
	return te + "\n" + en, nil
}

// templateFor picks the message for an event, or "" when the patient is
// not told about it.
func templateFor(e events.Event) string {
	switch e.Type {
	case events.UserRegistered:
		return "welcome"
	case events.RequestStatusChanged:
		return "request-" + e.To
	case events.OrderStatusChanged:
		return "order-" + e.To
	case events.OrderCreated:
		// Patients placing their own orders are not texted.
		if e.Actor != "" && e.Actor != e.UserID {
			return "order-prescribed"
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// Directory resolves the recipient of a notification.
type Directory interface {
	FindUserByID(ctx context.Context, id string) (*identity.User, error)
}

// Dispatcher is an events.Publisher that turns domain events into SMS and
// keeps a log of what was sent.
type Dispatcher struct {
	sender    SMSSender
	users     Directory
	templates *TemplateEngine
	now       func() time.Time

	mu    sync.RWMutex
	sent  map[string]*Notification
	order []string
}

func NewDispatcher(sender SMSSender, users Directory, tpl *TemplateEngine) *Dispatcher {
	return &Dispatcher{
		sender:    sender,
		users:     users,
		templates: tpl,
		now:       func() time.Time { return time.Now().UTC() },
		sent:      make(map[string]*Notification),
	}
}

// Publish sends the SMS for e, if any. Events without a template and
// users without a phone are skipped.
func (d *Dispatcher) Publish(ctx context.Context, e events.Event) error {
	templateID := templateFor(e)
	if templateID == "" || e.UserID == "" || !d.templates.Has(templateID) {
		return nil
	}
	u, err := d.users.FindUserByID(ctx, e.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient %s: %w", e.UserID, err)
	}
	if u.Phone == "" {
		return nil
	}
	body, err := d.templates.Render(templateID, map[string]string{
		"name":   u.Name,
		"id":     u.ID,
		"entity": e.EntityID,
	})
	if err != nil {
		return err
	}

	n := &Notification{
		ID:         uuid.New().String(),
		UserID:     u.ID,
		Recipient:  u.Phone,
		Body:       body,
		TemplateID: templateID,
		EventID:    e.ID,
		CreatedAt:  d.now(),
	}
	sendErr := d.deliver(ctx, n)

	d.mu.Lock()
	d.sent[n.ID] = n
	d.order = append(d.order, n.ID)
	d.mu.Unlock()
	return sendErr
}

func (d *Dispatcher) deliver(ctx context.Context, n *Notification) error {
	if err := d.sender.SendSMS(ctx, n.Recipient, n.Body); err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return err
	}
	n.Status = StatusSent
	n.Error = ""
	sentAt := d.now()
	n.SentAt = &sentAt
	return nil
}

func (d *Dispatcher) Get(id string) (*Notification, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.sent[id]
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	c := *n
	return &c, nil
}

// ListByUser returns up to limit of the user's notifications, newest
// first. A limit of zero or less returns all of them.
func (d *Dispatcher) ListByUser(userID string, limit int) []*Notification {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Notification
	for i := len(d.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if n := d.sent[d.order[i]]; n.UserID == userID {
			c := *n
			out = append(out, &c)
		}
	}
	return out
}

// Retry re-sends a failed notification.
func (d *Dispatcher) Retry(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.sent[id]
	if !ok {
		return fmt.Errorf("notification %q not found", id)
	}
	if n.Status != StatusFailed {
		return fmt.Errorf("notification %q is not in failed status (current: %s)", id, n.Status)
	}
	return d.deliver(ctx, n)
}

// Stats counts notifications by status.
func (d *Dispatcher) Stats() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	stats := map[string]int{StatusSent: 0, StatusFailed: 0}
	for _, n := range d.sent {
		stats[n.Status]++
	}
	return stats
}

// Failed lists the ids of failed notifications in send order.
func (d *Dispatcher) Failed() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var ids []string
	for _, id := range d.order {
		if d.sent[id].Status == StatusFailed {
			ids = append(ids, id)
		}
	}
	return ids
}
