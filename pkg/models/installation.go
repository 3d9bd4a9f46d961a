package models

import "fmt"

// InstallationACL lists the current user's rights on an installation.
type InstallationACL struct {
	Configure *Allowed `json:"configure,omitempty"`
	View      *Allowed `json:"view,omitempty"`
	Control   *Allowed `json:"control,omitempty"`
}

// InstallationNetwork holds the gateway's network details.
type InstallationNetwork struct {
	LocalIPAddress string `json:"local_ip_address,omitempty"`
}

// Installation is a cloud-registered gateway.
type Installation struct {
	ID              int                  `json:"id"`
	Name            string               `json:"name"`
	Description     string               `json:"description,omitempty"`
	GatewayModel    string               `json:"gateway_model,omitempty"`
	ACL             *InstallationACL     `json:"_acl,omitempty"`
	Version         FlexString           `json:"_version,omitempty"`
	FirmwareVersion string               `json:"version,omitempty"`
	UserRole        map[string]any       `json:"user_role"`
	RegistrationKey string               `json:"registration_key,omitempty"`
	Platform        string               `json:"platform,omitempty"`
	BuildingRoles   []any                `json:"building_roles"`
	Network         *InstallationNetwork `json:"network,omitempty"`
	Flags           map[string]any       `json:"flags"`
	Features        []string             `json:"features"`
}

// String returns "<id>_<name>".
func (i Installation) String() string {
	return fmt.Sprintf("%d_%s", i.ID, i.Name)
}

// Online reports the ONLINE flag; unknown counts as offline.
func (i *Installation) Online() bool {
	v, ok := i.Flags["ONLINE"].(bool)
	return ok && v
}

// HasFeature reports whether the installation advertises feature.
func (i *Installation) HasFeature(feature string) bool {
	for _, f := range i.Features {
		if f == feature {
			return true
		}
	}
	return false
}
