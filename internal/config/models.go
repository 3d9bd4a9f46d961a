package config

import (
	"fmt"
	"sort"
	"time"
)

// Connection modes of a profile
const (
	ModeLocal = "local"
	ModeCloud = "cloud"
)

// DefaultProfile is created by NewRegistry and selected when none is named.
const DefaultProfile = "default"

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int                 `yaml:"version"`
	Current     string              `yaml:"current,omitempty"` // Profile used when --profile is not given
	Profiles    map[string]*Profile `yaml:"profiles,omitempty"`
	Preferences *Preferences        `yaml:"preferences,omitempty"`
}

// Profile describes how to reach one installation, either through its
// local gateway or through the cloud.
type Profile struct {
	Mode string `yaml:"mode"` // local or cloud

	// Local gateway
	Host      string `yaml:"host,omitempty"`
	Port      int    `yaml:"port,omitempty"`
	Scheme    string `yaml:"scheme,omitempty"`
	Username  string `yaml:"username,omitempty"`
	VerifyTLS bool   `yaml:"verify_tls,omitempty"`

	// Cloud
	BaseURL        string `yaml:"base_url,omitempty"`
	ClientID       string `yaml:"client_id,omitempty"`
	InstallationID int    `yaml:"installation_id,omitempty"`

	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last successful connection
}

// Validate checks that the profile carries what its mode needs to connect.
func (p *Profile) Validate() error {
	if err := p.checkFields(); err != nil {
		return err
	}
	if p.Mode == ModeLocal && p.Host == "" {
		return fmt.Errorf("local profile needs a host")
	}
	return nil
}

// checkFields rejects values that are wrong in any profile. A local profile
// without a host is still acceptable on disk; the default profile starts
// that way.
func (p *Profile) checkFields() error {
	switch p.Mode {
	case ModeLocal:
		if p.Port < 0 || p.Port > 65535 {
			return fmt.Errorf("invalid port %d", p.Port)
		}
		if p.Scheme != "" && p.Scheme != "https" && p.Scheme != "http" {
			return fmt.Errorf("invalid scheme %q", p.Scheme)
		}
	case ModeCloud:
		if p.InstallationID < 0 {
			return fmt.Errorf("invalid installation id %d", p.InstallationID)
		}
	default:
		return fmt.Errorf("unknown mode %q (want %s or %s)", p.Mode, ModeLocal, ModeCloud)
	}
	return nil
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DiscoverTimeout int    `yaml:"discover_timeout"`    // mDNS discovery timeout in seconds
	RequestTimeout  int    `yaml:"request_timeout"`     // Per-request timeout in seconds
	LogLevel        string `yaml:"log_level,omitempty"` // debug, info, warn or error
}

func defaultPreferences() *Preferences {
	return &Preferences{
		DiscoverTimeout: 5,
		RequestTimeout:  8,
	}
}

// NewRegistry creates a new Registry with default values.
// Note: passwords, client secrets and tokens are never part of it.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Current: DefaultProfile,
		Profiles: map[string]*Profile{
			DefaultProfile: {Mode: ModeLocal, Username: "admin"},
		},
		Preferences: defaultPreferences(),
	}
}

// GetProfile returns the named profile, or the current one when name is
// empty. Returns nil if it does not exist.
func (r *Registry) GetProfile(name string) *Profile {
	if name == "" {
		name = r.Current
	}
	return r.Profiles[name]
}

// SetProfile adds or replaces a profile after validating it.
func (r *Registry) SetProfile(name string, p *Profile) error {
	if name == "" {
		return fmt.Errorf("profile name is required")
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("profile %s: %w", name, err)
	}
	if r.Profiles == nil {
		r.Profiles = make(map[string]*Profile)
	}
	r.Profiles[name] = p
	if r.Current == "" {
		r.Current = name
	}
	return nil
}

// UseProfile makes name the current profile.
func (r *Registry) UseProfile(name string) error {
	if _, ok := r.Profiles[name]; !ok {
		return fmt.Errorf("profile %s does not exist", name)
	}
	r.Current = name
	return nil
}

// DeleteProfile removes a profile. The current profile cannot be removed.
func (r *Registry) DeleteProfile(name string) error {
	if name == r.Current {
		return fmt.Errorf("profile %s is in use", name)
	}
	if _, ok := r.Profiles[name]; !ok {
		return fmt.Errorf("profile %s does not exist", name)
	}
	delete(r.Profiles, name)
	return nil
}

// ProfileNames returns the profile names in sorted order.
func (r *Registry) ProfileNames() []string {
	names := make([]string, 0, len(r.Profiles))
	for name := range r.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarkSeen records a successful connection through a profile.
func (r *Registry) MarkSeen(name string) {
	if p := r.GetProfile(name); p != nil {
		p.LastSeen = time.Now()
	}
}
