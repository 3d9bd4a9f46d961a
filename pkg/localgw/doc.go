// Package localgw talks to an OpenMotics gateway over its local HTTP API.
//
// The gateway exposes every operation as a form-encoded POST to /<action>.
// Responses carry a {"success": bool, "msg": string} envelope; a false
// success is returned as an API error with the gateway's message.
//
// Authentication is a username/password login that yields a session token
// valid for one hour. The token is obtained on the first call, renewed shortly
// before it expires and renewed once more whenever the gateway rejects it.
//
// Gateways ship self-signed certificates, so TLS verification is off unless
// WithTLS(true, ...) is given.
//
// Configuration listings change rarely and are cached for
// DefaultCacheDuration; live status is always fetched.
//
//	gw, err := localgw.New("192.168.1.20", "admin", password)
//	if err != nil {
//		return err
//	}
//	defer gw.Close()
//
//	lights, err := gw.Lights.GetAll(ctx)
//	...
//	level := 40
//	err = gw.Lights.TurnOn(ctx, lights[0].ID, &level)
package localgw
