package sites

import (
	"context"
	"fmt"
	"strings"

	"cetracker/lib/browser"
	"cetracker/lib/compliance"
	"cetracker/lib/htmlutil"
)

// LoginForm describes a site's login sequence in terms of selectors.
//
// With Next set the login is two-step: the identifier is submitted first and
// the secret field only appears on the following view.
type LoginForm struct {
	URL      string
	Username string
	Next     string
	Password string
	Submit   string
	// Failure matches the error message a rejected login renders.
	Failure string
	// Surface lists URL fragments that mean the page is still on the login flow.
	Surface []string
	// Ready optionally matches an element only shown once authenticated.
	Ready string
}

func (f LoginForm) Login(ctx context.Context, page browser.Page, cred compliance.Credential) error {
	err := page.Navigate(ctx, f.URL)
	if err != nil {
		return compliance.AsNavigationTimeout("login page", err)
	}

	err = page.WaitVisible(ctx, f.Username)
	if err != nil {
		return compliance.AsNavigationTimeout("username field", err)
	}
	err = page.Fill(ctx, f.Username, cred.Username)
	if err != nil {
		return err
	}

	if f.Next != "" {
		err = page.Click(ctx, f.Next)
		if err != nil {
			return err
		}
		err = f.waitPasswordStep(ctx, page)
		if err != nil {
			return err
		}
	}

	err = page.Fill(ctx, f.Password, cred.Secret)
	if err != nil {
		return err
	}
	err = page.Click(ctx, f.Submit)
	if err != nil {
		return err
	}
	return f.waitOutcome(ctx, page)
}

func (f LoginForm) failureText(ctx context.Context, page browser.Page) (string, bool, error) {
	if f.Failure == "" {
		return "", false, nil
	}
	doc, err := page.Document(ctx)
	if err != nil {
		return "", false, err
	}
	failure := doc.Find(f.Failure)
	if failure.Length() == 0 {
		return "", false, nil
	}
	text := htmlutil.Text(failure.First())
	if text == "" {
		text = "login rejected"
	}
	return text, true, nil
}

func (f LoginForm) waitPasswordStep(ctx context.Context, page browser.Page) error {
	err := browser.WaitFor(ctx, func(ctx context.Context) (bool, error) {
		message, failed, err := f.failureText(ctx, page)
		if err != nil {
			return false, err
		}
		if failed {
			return false, fmt.Errorf("identifier rejected: %s", message)
		}
		return browser.Exists(ctx, page, f.Password)
	})
	return compliance.AsNavigationTimeout("password step", err)
}

func (f LoginForm) waitOutcome(ctx context.Context, page browser.Page) error {
	err := browser.WaitFor(ctx, func(ctx context.Context) (bool, error) {
		message, failed, err := f.failureText(ctx, page)
		if err != nil {
			return false, err
		}
		if failed {
			return false, fmt.Errorf("credentials rejected: %s", message)
		}

		location, err := page.Location(ctx)
		if err != nil {
			return false, err
		}
		for _, fragment := range f.Surface {
			if strings.Contains(location, fragment) {
				return false, nil
			}
		}
		if f.Ready == "" {
			return true, nil
		}
		return browser.Exists(ctx, page, f.Ready)
	})
	return compliance.AsNavigationTimeout("post-login navigation", err)
}
