// Package notify renders and delivers the transactional emails of the
// signup and approval workflow.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"sanastro.app/internal/obs"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Kind names one email type.
type Kind string

const (
	KindWelcome      Kind = "welcome"
	KindApproved     Kind = "approved"
	KindRejected     Kind = "rejected"
	KindAdminNewUser Kind = "admin_new_user"
	KindVerify       Kind = "verify"
)

var subjects = map[Kind]string{
	KindWelcome:      "Welcome to Sanastro - Account Pending Approval",
	KindApproved:     "Your Sanastro Account Has Been Approved!",
	KindRejected:     "Sanastro Account Status Update",
	KindAdminNewUser: "New User Registration - Pending Approval",
	KindVerify:       "Verify Your Email - Sanastro",
}

// ErrNoRecipients is returned when a message has nobody to go to.
var ErrNoRecipients = errors.New("notify: no recipients")

// Message is a rendered email ready for delivery.
type Message struct {
	Kind    Kind
	To      []string
	Subject string
	HTML    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier renders templates and hands messages to a Sender.
type Notifier struct {
	sender      Sender
	appURL      string
	adminEmails []string
	now         func() time.Time
}

func New(sender Sender, appURL string, adminEmails []string) *Notifier {
	admins := make([]string, 0, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.TrimSpace(e); e != "" {
			admins = append(admins, e)
		}
	}
	return &Notifier{
		sender:      sender,
		appURL:      strings.TrimRight(appURL, "/"),
		adminEmails: admins,
		now:         time.Now,
	}
}

type templateData struct {
	Name       string
	Email      string
	Reason     string
	Link       string
	Registered string
	Year       int
}

func greetingName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}

// Welcome tells a new user their account awaits approval.
func (n *Notifier) Welcome(ctx context.Context, email, name string) error {
	return n.send(ctx, KindWelcome, []string{email}, templateData{Name: greetingName(name)})
}

// Approved tells a user they can sign in to the dashboard.
func (n *Notifier) Approved(ctx context.Context, email, name string) error {
	return n.send(ctx, KindApproved, []string{email}, templateData{
		Name: greetingName(name),
		Link: n.appURL + "/dashboard",
	})
}

// Rejected tells a user their request was declined, with the reason when one was given.
func (n *Notifier) Rejected(ctx context.Context, email, name, reason string) error {
	return n.send(ctx, KindRejected, []string{email}, templateData{
		Name:   greetingName(name),
		Reason: strings.TrimSpace(reason),
	})
}

// AdminNewUser alerts every configured admin address about a pending signup.
func (n *Notifier) AdminNewUser(ctx context.Context, email, name string) error {
	if len(n.adminEmails) == 0 {
		obs.Logger().Warn("notify: no admin emails configured", "kind", string(KindAdminNewUser))
		obs.ObserveEmail(string(KindAdminNewUser), "skipped")
		return ErrNoRecipients
	}
	if strings.TrimSpace(name) == "" {
		name = "Not provided"
	}
	return n.send(ctx, KindAdminNewUser, n.adminEmails, templateData{
		Name:       name,
		Email:      email,
		Registered: n.now().UTC().Format("2006-01-02 15:04 MST"),
		Link:       n.appURL + "/admin/users",
	})
}

// Verify sends the email verification link for token.
func (n *Notifier) Verify(ctx context.Context, email, name, token string) error {
	return n.send(ctx, KindVerify, []string{email}, templateData{
		Name: greetingName(name),
		Link: n.appURL + "/auth/verify?token=" + url.QueryEscape(token),
	})
}

// render produces the message for kind without sending it.
func (n *Notifier) render(kind Kind, to []string, data templateData) (Message, error) {
	data.Year = n.now().Year()
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(kind)+".html", data); err != nil {
		return Message{}, fmt.Errorf("render %s email: %w", kind, err)
	}
	return Message{Kind: kind, To: to, Subject: subjects[kind], HTML: buf.String()}, nil
}

func (n *Notifier) send(ctx context.Context, kind Kind, to []string, data templateData) error {
	if len(to) == 0 || strings.TrimSpace(to[0]) == "" {
		obs.ObserveEmail(string(kind), "skipped")
		return ErrNoRecipients
	}
	msg, err := n.render(kind, to, data)
	if err != nil {
		obs.ObserveEmail(string(kind), "error")
		return err
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		obs.ObserveEmail(string(kind), "error")
		obs.Logger().Error("notify: send failed", "kind", string(kind), "error", err)
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	obs.ObserveEmail(string(kind), "sent")
	return nil
}
