// Package discovery finds OpenMotics gateways on the local network with mDNS.
//
// Gateways announce their web API as _https._tcp (and on older firmware
// _http._tcp). Entries are accepted when the instance name, the host name or
// a vendor TXT record mentions OpenMotics.
//
//	gateways, err := discovery.Scan(ctx, 3*time.Second)
//	for _, gw := range gateways {
//		fmt.Println(gw.Address())
//	}
package discovery
