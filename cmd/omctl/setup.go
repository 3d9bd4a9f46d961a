package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openmotics-go/openmotics/internal/config"
	"github.com/openmotics-go/openmotics/internal/discovery"
	"github.com/openmotics-go/openmotics/internal/ui"
)

// Setup command flags
var (
	scanTimeout int
	modeFlag    string
	schemeFlag  string
	userFlag    string
	baseURLFlag string
	clientID    string
	useFlag     bool
)

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (default from preferences)")

	setProfileCmd.Flags().StringVar(&modeFlag, "mode", "", "Connection mode (local or cloud)")
	setProfileCmd.Flags().StringVar(&schemeFlag, "scheme", "", "Gateway scheme (https or http)")
	setProfileCmd.Flags().StringVar(&userFlag, "username", "", "Gateway username")
	setProfileCmd.Flags().StringVar(&baseURLFlag, "base-url", "", "Cloud API base URL")
	setProfileCmd.Flags().StringVar(&clientID, "client-id", "", "Cloud OAuth2 client id")
	setProfileCmd.Flags().BoolVar(&useFlag, "use", false, "Make this the current profile")

	configCmd.AddCommand(configInitCmd, configShowCmd, setProfileCmd, useProfileCmd, deleteProfileCmd)
	rootCmd.AddCommand(scanCmd, configCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover OpenMotics gateways on the local network",
	Long: `Discover OpenMotics gateways using mDNS/DNS-SD.

Gateways announce their web service as _https._tcp or _http._tcp; entries
whose name, host or vendor record mentions OpenMotics are listed.`,
	Example: `  omctl scan
  omctl scan --timeout 10`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(scanTimeout) * time.Second
	if timeout <= 0 {
		if reg, err := config.LoadRegistry(); err == nil && reg.Preferences != nil && reg.Preferences.DiscoverTimeout > 0 {
			timeout = time.Duration(reg.Preferences.DiscoverTimeout) * time.Second
		}
	}
	if timeout <= 0 {
		timeout = discovery.DefaultScanTimeout
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.Println(fmt.Sprintf("Scanning for OpenMotics gateways (timeout: %s)...", timeout))
	p.Newline()

	gateways, err := discovery.Scan(cmd.Context(), timeout)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if len(gateways) == 0 {
		p.PrintError("No gateways found", nil, []string{
			"Check that this computer is on the same network as the gateway",
			"Multicast DNS may be blocked by the router or a firewall",
			"Try increasing --timeout, or use --host with the gateway address",
		})
		return nil
	}

	t := ui.NewTable("NAME", "ADDRESS", "URL")
	for _, gw := range gateways {
		t.AddRow(gw.Instance, gw.Address(), gw.BaseURL())
	}
	p.PrintTable(t)
	p.Newline()
	p.Println("Use 'omctl config set-profile <name> --host <ip>' to save a gateway")
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage connection profiles",
	Long: `Manage the connection profiles in the configuration file.

Profiles hold hosts, ports, usernames and cloud client ids. Passwords,
client secrets and tokens are never written to the file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the configuration file with a default profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.CreateDefaultConfig()
		if err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Configuration created", map[string]string{"Path": path})
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(reg)
		if err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)
		return nil
	},
}

var setProfileCmd = &cobra.Command{
	Use:   "set-profile <name>",
	Short: "Create or update a profile",
	Long: `Create or update a profile. Only the given settings change; the
connection flags --host, --port, --installation and --verify-tls are stored
as well, and --cloud selects the cloud mode.`,
	Example: `  omctl config set-profile home --host 192.168.1.20 --use
  omctl config set-profile remote --cloud --client-id abc --installation 21`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		name := args[0]
		p := updateProfile(reg.GetProfile(name), cmd)
		if err := reg.SetProfile(name, p); err != nil {
			return err
		}
		if useFlag {
			if err := reg.UseProfile(name); err != nil {
				return err
			}
		}
		if err := reg.Save(); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess(fmt.Sprintf("Profile %s saved", name), profileDetails(p))
		return nil
	},
}

// updateProfile returns a copy of existing with the flags that were given
// applied on top.
func updateProfile(existing *config.Profile, cmd *cobra.Command) *config.Profile {
	p := &config.Profile{Mode: config.ModeLocal, Username: defaultUsername}
	if existing != nil {
		*p = *existing
	}
	flags := cmd.Flags()
	if flags.Changed("mode") {
		p.Mode = strings.ToLower(modeFlag)
	}
	if cloudFlag {
		p.Mode = config.ModeCloud
	}
	if flags.Changed("host") {
		p.Host = hostFlag
	}
	if flags.Changed("port") {
		p.Port = portFlag
	}
	if flags.Changed("scheme") {
		p.Scheme = strings.ToLower(schemeFlag)
	}
	if flags.Changed("username") {
		p.Username = userFlag
	}
	if flags.Changed("verify-tls") {
		p.VerifyTLS = verifyTLS
	}
	if flags.Changed("base-url") {
		p.BaseURL = baseURLFlag
	}
	if flags.Changed("client-id") {
		p.ClientID = clientID
	}
	if flags.Changed("installation") {
		p.InstallationID = installationID
	}
	return p
}

func profileDetails(p *config.Profile) map[string]string {
	details := map[string]string{"Mode": p.Mode}
	if p.Mode == config.ModeCloud {
		if p.BaseURL != "" {
			details["Base URL"] = p.BaseURL
		}
		if p.ClientID != "" {
			details["Client ID"] = p.ClientID
		}
		if p.InstallationID > 0 {
			details["Installation"] = itoa(p.InstallationID)
		}
		return details
	}
	details["Host"] = p.Host
	if p.Port > 0 {
		details["Port"] = itoa(p.Port)
	}
	details["Username"] = p.Username
	return details
}

var useProfileCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Select the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRegistry(func(reg *config.Registry) error {
			return reg.UseProfile(args[0])
		})
	},
}

var deleteProfileCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRegistry(func(reg *config.Registry) error {
			return reg.DeleteProfile(args[0])
		})
	},
}

func editRegistry(fn func(*config.Registry) error) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	if err := fn(reg); err != nil {
		return err
	}
	return reg.Save()
}
