package emailloop

import (
	"context"
	"fmt"
	"time"

	brokererrors "github.com/idbroker/broker/internal/errors"
	"github.com/idbroker/broker/session"
)

// Loop drives the email-loop confirmation flow: issue a one-time code,
// email it, and later verify it against the SessionStore.
type Loop struct {
	store      session.Store
	mailer     *Mailer
	baseURL    string
	sessionTTL time.Duration
}

// New builds a Loop bound to a SessionStore, a Mailer, the broker's
// public base URL (embedded in the confirmation link), and the session
// TTL (`expire_keys`).
func New(store session.Store, mailer *Mailer, baseURL string, sessionTTL time.Duration) *Loop {
	return &Loop{
		store:      store,
		mailer:     mailer,
		baseURL:    baseURL,
		sessionTTL: sessionTTL,
	}
}

// Request starts an email-loop confirmation: generates a session and a
// one-time code, persists the session, and emails the confirmation link.
func (l *Loop) Request(ctx context.Context, email, clientID, redirectURI, nonce string) error {
	id, err := session.NewID()
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	record := session.Record{
		Kind:        session.KindEmail,
		Email:       email,
		ClientID:    clientID,
		Nonce:       nonce,
		RedirectURI: redirectURI,
		Code:        code,
	}

	if err := l.store.Put(ctx, id, record, l.sessionTTL); err != nil {
		return fmt.Errorf("persist email session: %w", err)
	}

	if err := l.mailer.Send(email, l.baseURL, id, code); err != nil {
		return brokererrors.Wrapf(err, "%w", brokererrors.ErrEmailSendFailure)
	}
	return nil
}

// Verify checks a (sessionID, code) pair submitted at /confirm. On a
// match it consumes the session and returns its record; otherwise it
// returns ErrMismatch or ErrNotFound.
func (l *Loop) Verify(ctx context.Context, sessionID, code string) (session.Record, error) {
	return l.store.VerifyAndConsume(ctx, sessionID, code)
}
