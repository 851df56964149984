package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// Mailer dispatches account emails. Implementations must not block the auth
// flow on delivery; a failed send is logged, never surfaced to the caller.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string)
	SendPasswordReset(ctx context.Context, email, token string)
}

// Publisher is the slice of the event bus the mailer needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

const emailSubject = "trendpulse.email.send"

// BusMailer hands email jobs to the event bus for a downstream delivery
// worker and logs the dispatch. With a nil publisher it degrades to
// log-only, which is the development default.
type BusMailer struct {
	log    zerolog.Logger
	bus    Publisher
	appURL string
}

// NewBusMailer returns a mailer publishing to bus. appURL is the frontend
// base used to build clickable links.
func NewBusMailer(log zerolog.Logger, bus Publisher, appURL string) *BusMailer {
	return &BusMailer{log: log, bus: bus, appURL: appURL}
}

type emailJob struct {
	Template string `json:"template"`
	To       string `json:"to"`
	Link     string `json:"link"`
}

func (m *BusMailer) SendVerification(ctx context.Context, email, token string) {
	m.dispatch(ctx, emailJob{
		Template: "verify-email",
		To:       email,
		Link:     fmt.Sprintf("%s/verify-email?token=%s", m.appURL, token),
	})
}

func (m *BusMailer) SendPasswordReset(ctx context.Context, email, token string) {
	m.dispatch(ctx, emailJob{
		Template: "reset-password",
		To:       email,
		Link:     fmt.Sprintf("%s/reset-password?token=%s", m.appURL, token),
	})
}

func (m *BusMailer) dispatch(ctx context.Context, job emailJob) {
	m.log.Info().
		Str("template", job.Template).
		Str("to", job.To).
		Msg("dispatching email")

	if m.bus == nil {
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		m.log.Error().Err(err).Msg("encode email job")
		return
	}
	if err := m.bus.Publish(emailSubject, payload); err != nil {
		m.log.Error().Err(err).Str("to", job.To).Msg("publish email job")
	}
}
