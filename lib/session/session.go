// Package session opens one isolated, authenticated page per (provider, site)
// unit of work and guarantees it is released afterward.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cetracker/lib/browser"
	"cetracker/lib/compliance"
	"cetracker/lib/diagnostics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("cetracker.lib.session")

const DefaultLoginTimeout = 45 * time.Second

// Authenticator performs a site's login sequence on a fresh page.
type Authenticator interface {
	Authenticate(ctx context.Context, page browser.Page, cred compliance.Credential) error
}

type AuthenticatorFunc func(ctx context.Context, page browser.Page, cred compliance.Credential) error

func (f AuthenticatorFunc) Authenticate(ctx context.Context, page browser.Page, cred compliance.Credential) error {
	return f(ctx, page, cred)
}

// Session is an authenticated page bound to exactly one credential.
type Session struct {
	Page       browser.Page
	Credential compliance.Credential

	closeOnce sync.Once
	closeErr  error
}

// Close releases the underlying page, it is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.Page.Close()
	})
	return s.closeErr
}

type Manager struct {
	Sink diagnostics.Sink
	// LoginTimeout bounds the whole login sequence, 0 means DefaultLoginTimeout.
	LoginTimeout time.Duration
}

// Open launches a new page and logs into it with cred. Any failure during login
// is snapshotted to the diagnostics sink, the page is closed and an
// *compliance.AuthenticationError carrying the cause is returned.
func (m Manager) Open(
	ctx context.Context,
	launcher browser.Launcher,
	auth Authenticator,
	cred compliance.Credential,
	providerName string,
) (*Session, error) {
	ctx, span := tracer.Start(ctx, "session:Open")
	defer span.End()
	span.SetAttributes(
		attribute.String("site", cred.SiteID),
		attribute.String("engine", string(launcher.Engine())),
	)

	page, err := launcher.Launch(ctx)
	if err != nil {
		err = fmt.Errorf("launch %s page: %w", launcher.Engine(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	timeout := m.LoginTimeout
	if timeout == 0 {
		timeout = DefaultLoginTimeout
	}
	err = browser.WithTimeout(ctx, timeout, func(ctx context.Context) error {
		return auth.Authenticate(ctx, page, cred)
	})
	if err != nil {
		err = compliance.AsNavigationTimeout("login", err)
		m.Sink.Record(ctx, page, providerName, "login", err)
		closeErr := page.Close()
		if closeErr != nil {
			slog.WarnContext(ctx, "failed to close page after login failure", "site", cred.SiteID, "err", closeErr)
		}

		var authErr *compliance.AuthenticationError
		if !errors.As(err, &authErr) {
			err = &compliance.AuthenticationError{Site: cred.SiteID, Cause: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	slog.DebugContext(ctx, "authenticated", "provider", providerName, "site", cred.SiteID)
	return &Session{Page: page, Credential: cred}, nil
}

// Do opens a session, runs fn with it and closes it on every exit path,
// including a panic inside fn. A panic is snapshotted to the diagnostics sink
// before the page is closed and then re-raised. Errors returned by fn are left
// to fn to capture, at the stage where they happened.
func (m Manager) Do(
	ctx context.Context,
	launcher browser.Launcher,
	auth Authenticator,
	cred compliance.Credential,
	providerName string,
	fn func(ctx context.Context, s *Session) error,
) error {
	s, err := m.Open(ctx, launcher, auth, cred, providerName)
	if err != nil {
		return err
	}
	defer func() {
		err := s.Close()
		if err != nil {
			slog.WarnContext(ctx, "failed to close session", "site", cred.SiteID, "err", err)
		}
	}()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		m.Sink.Record(ctx, s.Page, providerName, cred.SiteID+"_panic", fmt.Errorf("panic: %v", r))
		panic(r)
	}()
	return fn(ctx, s)
}
