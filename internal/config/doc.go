// Package config stores the omctl connection profiles.
//
// The registry is a YAML file holding named profiles, each describing how to
// reach an installation: a local gateway (host, port, username) or the cloud
// (client id, installation id). The file follows OS conventions:
//   - Linux: $XDG_CONFIG_HOME/openmotics/config.yaml or $HOME/.config/openmotics/config.yaml
//   - macOS: $HOME/.config/openmotics/config.yaml
//   - Windows: %LOCALAPPDATA%\openmotics\config.yaml
//
// Passwords, client secrets and tokens are NEVER written to it.
//
// Saves go through a temporary file and a rename, so a crash never leaves a
// half-written configuration behind.
package config
