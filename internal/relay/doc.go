// Package relay republishes OpenMotics events on an MQTT broker.
//
// Each event goes to <prefix>/<installation>/<type>/<id>, with the type in
// lower case and "local" standing in for the installation of a local
// gateway. The payload is a JSON Message.
package relay
