// Package roster loads the providers a batch runs over and resolves their
// credentials.
package roster

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cetracker/lib/compliance"
	"cetracker/lib/configutil"

	"github.com/joho/godotenv"
)

type credentialFile struct {
	Site     string `json:"site"`
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

type providerFile struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	Credentials []credentialFile `json:"credentials"`
}

type rosterFile struct {
	Providers []providerFile `json:"providers"`
}

// LoadEnv loads variables from a .env file into the process environment
// without overriding ones that are already set. A missing file is not an
// error.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("env file not found, using process environment", "path", path)
		return nil
	}
	return err
}

// Load reads a json5 roster. Usernames and secrets undergo ${VAR} expansion
// from the environment, a credential left empty by it is dropped so the
// provider counts as not configured for that site.
func Load(path string) (compliance.Roster, error) {
	file, err := configutil.ReadConfig[rosterFile](path)
	if err != nil {
		return compliance.Roster{}, fmt.Errorf("read roster %s: %w", path, err)
	}
	return parse(file)
}

func parse(file rosterFile) (compliance.Roster, error) {
	var out compliance.Roster
	seen := map[string]bool{}
	for i, p := range file.Providers {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return compliance.Roster{}, fmt.Errorf("provider %d has no id", i)
		}
		if seen[id] {
			return compliance.Roster{}, fmt.Errorf("duplicate provider id %q", id)
		}
		seen[id] = true

		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = id
		}
		provider := compliance.Provider{
			ID:   id,
			Name: name,
			Type: strings.TrimSpace(p.Type),
		}

		sitesSeen := map[string]bool{}
		for _, c := range p.Credentials {
			site := strings.TrimSpace(c.Site)
			if site == "" {
				return compliance.Roster{}, fmt.Errorf("provider %q: credential has no site", id)
			}
			if sitesSeen[site] {
				return compliance.Roster{}, fmt.Errorf("provider %q: more than one credential for %s", id, site)
			}
			sitesSeen[site] = true

			username := os.ExpandEnv(c.Username)
			secret := os.ExpandEnv(c.Secret)
			if username == "" || secret == "" {
				slog.Warn("dropping credential with an empty username or secret",
					"provider", id,
					"site", site,
				)
				continue
			}
			provider.Credentials = append(provider.Credentials, compliance.Credential{
				ProviderID: id,
				SiteID:     site,
				Username:   username,
				Secret:     secret,
			})
		}
		out.Providers = append(out.Providers, provider)
	}
	return out, nil
}

// Validate rejects credentials naming sites that known does not recognize.
func Validate(r compliance.Roster, known func(siteID string) bool) error {
	var errs []error
	for _, p := range r.Providers {
		for _, c := range p.Credentials {
			if !known(c.SiteID) {
				errs = append(errs, fmt.Errorf("provider %q: unknown site %q", p.ID, c.SiteID))
			}
		}
	}
	return errors.Join(errs...)
}
