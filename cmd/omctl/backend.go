package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/openmotics-go/openmotics/internal/config"
	"github.com/openmotics-go/openmotics/internal/logging"
	"github.com/openmotics-go/openmotics/pkg/client"
	"github.com/openmotics-go/openmotics/pkg/cloud"
	"github.com/openmotics-go/openmotics/pkg/events"
	"github.com/openmotics-go/openmotics/pkg/localgw"
	"github.com/openmotics-go/openmotics/pkg/models"
)

// Secrets are read from the environment, never from the configuration file
const (
	envPassword     = "OPENMOTICS_PASSWORD"
	envClientID     = "OPENMOTICS_CLIENT_ID"
	envClientSecret = "OPENMOTICS_CLIENT_SECRET"
	envToken        = "OPENMOTICS_TOKEN"
)

const defaultUsername = "admin"

type lister[T any] interface {
	GetAll(ctx context.Context) ([]T, error)
}

type switcher[T any] interface {
	lister[T]
	TurnOn(ctx context.Context, id int, value *int) error
	TurnOff(ctx context.Context, id int) error
	TurnOffAll(ctx context.Context) error
	Toggle(ctx context.Context, id int) error
}

type shutterAPI interface {
	lister[models.Shutter]
	Up(ctx context.Context, id int) error
	Down(ctx context.Context, id int) error
	Stop(ctx context.Context, id int) error
	ChangePosition(ctx context.Context, id, position int) error
}

type groupActionAPI interface {
	lister[models.GroupAction]
	Trigger(ctx context.Context, id int) error
}

type thermostatGroupAPI interface {
	lister[models.ThermostatGroup]
	SetMode(ctx context.Context, id int, mode string) error
	SetState(ctx context.Context, id int, on bool) error
}

type thermostatUnitAPI interface {
	lister[models.ThermostatUnit]
	SetSetpoint(ctx context.Context, id int, temperature float64) error
	SetPreset(ctx context.Context, id int, preset string) error
}

type subscriber interface {
	Subscribe(ctx context.Context, types ...string) (*events.Stream, error)
}

// backend is what the commands need from either a local gateway or the
// cloud. Cloud-only services are nil for a local gateway.
type backend struct {
	Target string

	Outputs          switcher[models.Output]
	Lights           switcher[models.Light]
	Inputs           lister[models.Input]
	Sensors          lister[models.Sensor]
	Shutters         shutterAPI
	GroupActions     groupActionAPI
	ThermostatGroups thermostatGroupAPI
	ThermostatUnits  thermostatUnitAPI
	EnergySensors    lister[models.EnergySensor]

	Installations *cloud.InstallationsService
	Ventilations  lister[models.VentilationUnit]

	events subscriber
	closer io.Closer
}

func newLocalBackend(gw *localgw.Gateway) *backend {
	return &backend{
		Target:           fmt.Sprintf("gateway %s:%d", gw.Host, gw.Port),
		Outputs:          gw.Outputs,
		Lights:           gw.Lights,
		Inputs:           gw.Inputs,
		Sensors:          gw.Sensors,
		Shutters:         gw.Shutters,
		GroupActions:     gw.GroupActions,
		ThermostatGroups: gw.Thermostats.Groups,
		ThermostatUnits:  gw.Thermostats.Units,
		EnergySensors:    gw.EnergySensors,
		events:           gw,
		closer:           gw,
	}
}

func newCloudBackend(c *cloud.Cloud) *backend {
	target := "cloud"
	if id := c.InstallationID(); id > 0 {
		target = fmt.Sprintf("cloud installation %d", id)
	}
	return &backend{
		Target:           target,
		Outputs:          c.Outputs,
		Lights:           c.Lights,
		Inputs:           c.Inputs,
		Sensors:          c.Sensors,
		Shutters:         c.Shutters,
		GroupActions:     c.GroupActions,
		ThermostatGroups: c.Thermostats.Groups,
		ThermostatUnits:  c.Thermostats.Units,
		EnergySensors:    c.EnergySensors,
		Installations:    c.Installations,
		Ventilations:     c.Ventilations,
		events:           c,
		closer:           c,
	}
}

// Subscribe opens the event stream of the backend.
func (b *backend) Subscribe(ctx context.Context, types ...string) (*events.Stream, error) {
	return b.events.Subscribe(ctx, types...)
}

// Close stops the event streams and releases connections.
func (b *backend) Close() error {
	return b.closer.Close()
}

// overrides are the connection flags given on the command line.
type overrides struct {
	Host           string
	Port           int
	Cloud          bool
	InstallationID int
	VerifyTLS      *bool
}

func flagOverrides(cmd *cobra.Command) overrides {
	o := overrides{
		Host:           hostFlag,
		Port:           portFlag,
		Cloud:          cloudFlag,
		InstallationID: installationID,
	}
	if cmd.Flags().Changed("verify-tls") {
		v := verifyTLS
		o.VerifyTLS = &v
	}
	return o
}

// resolveProfile picks the named profile (or the current one) and applies
// the flag overrides. Without any stored profile the flags alone describe
// the connection.
func resolveProfile(reg *config.Registry, name string, o overrides) (config.Profile, error) {
	base := reg.GetProfile(name)
	if base == nil {
		if name != "" {
			return config.Profile{}, fmt.Errorf("profile %q not found (available: %s)",
				name, strings.Join(reg.ProfileNames(), ", "))
		}
		base = &config.Profile{Mode: config.ModeLocal}
	}

	p := *base
	if o.Host != "" {
		p.Host = o.Host
		p.Mode = config.ModeLocal
	}
	if o.Port != 0 {
		p.Port = o.Port
	}
	if o.Cloud {
		p.Mode = config.ModeCloud
	}
	if o.InstallationID != 0 {
		p.InstallationID = o.InstallationID
	}
	if o.VerifyTLS != nil {
		p.VerifyTLS = *o.VerifyTLS
	}
	if p.Mode == "" {
		p.Mode = config.ModeLocal
	}
	if p.Username == "" {
		p.Username = defaultUsername
	}

	if err := p.Validate(); err != nil {
		if p.Mode == config.ModeLocal && p.Host == "" {
			return p, fmt.Errorf("no gateway host: use --host, 'omctl config set-profile' or 'omctl scan'")
		}
		return p, fmt.Errorf("invalid connection settings: %w", err)
	}
	return p, nil
}

// open creates the gateway or cloud client for p.
func open(p config.Profile, prefs *config.Preferences) (*backend, error) {
	var timeout time.Duration
	if prefs != nil && prefs.RequestTimeout > 0 {
		timeout = time.Duration(prefs.RequestTimeout) * time.Second
	}
	logger := logging.GetLogger()

	if p.Mode == config.ModeCloud {
		source, err := cloudTokenSource(p)
		if err != nil {
			return nil, err
		}
		opts := []cloud.Option{
			cloud.WithInstallationID(p.InstallationID),
			cloud.WithLogger(logger),
		}
		if p.BaseURL != "" {
			opts = append(opts, cloud.WithBaseURL(p.BaseURL))
		}
		if timeout > 0 {
			opts = append(opts, cloud.WithTimeout(timeout))
		}
		c, err := cloud.New(source, opts...)
		if err != nil {
			return nil, err
		}
		return newCloudBackend(c), nil
	}

	password, err := secret(envPassword, fmt.Sprintf("Password for %s@%s: ", p.Username, p.Host))
	if err != nil {
		return nil, err
	}
	opts := []localgw.Option{
		localgw.WithTLS(p.VerifyTLS, nil),
		localgw.WithLogger(logger),
	}
	if p.Port > 0 {
		opts = append(opts, localgw.WithPort(p.Port))
	}
	if p.Scheme != "" {
		opts = append(opts, localgw.WithScheme(p.Scheme))
	}
	if timeout > 0 {
		opts = append(opts, localgw.WithTimeout(timeout))
	}
	gw, err := localgw.New(p.Host, p.Username, password, opts...)
	if err != nil {
		return nil, err
	}
	return newLocalBackend(gw), nil
}

// cloudTokenSource prefers a ready token from the environment and falls
// back to the client-credentials grant.
func cloudTokenSource(p config.Profile) (client.TokenSource, error) {
	if token := os.Getenv(envToken); token != "" {
		return client.StaticToken(token), nil
	}
	clientID := p.ClientID
	if clientID == "" {
		clientID = os.Getenv(envClientID)
	}
	if clientID == "" {
		return nil, client.NewValidationError(fmt.Sprintf(
			"cloud access needs %s, or a client id (profile client_id or %s)", envToken, envClientID))
	}
	clientSecret, err := secret(envClientSecret, "Client secret: ")
	if err != nil {
		return nil, err
	}
	return cloud.ClientCredentials(clientID, clientSecret), nil
}

// secret reads env, or prompts on the terminal without echo.
func secret(env, prompt string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s is not set and stdin is not a terminal", env)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return string(b), nil
}

// withBackend resolves the connection, runs fn and records a successful
// contact in the stored profile.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *backend) error) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	p, err := resolveProfile(reg, profileName, flagOverrides(cmd))
	if err != nil {
		return err
	}
	b, err := open(p, reg.Preferences)
	if err != nil {
		return err
	}
	defer b.Close()

	logging.Debug("Connecting", zap.String("target", b.Target))
	if err := fn(cmd.Context(), b); err != nil {
		return err
	}

	markSeen(reg, profileName)
	return nil
}

// markSeen stamps the profile, but only in a configuration file the user
// has already created.
func markSeen(reg *config.Registry, name string) {
	if reg.GetProfile(name) == nil {
		return
	}
	path, err := config.GetConfigPath()
	if err != nil {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	reg.MarkSeen(name)
	if err := reg.Save(); err != nil {
		logging.Debug("Failed to record last contact", zap.Error(err))
	}
}
