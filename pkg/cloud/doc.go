// Package cloud is a client for the OpenMotics cloud API.
//
// Most endpoints live below /base/installations/{id}, so an installation id
// must be selected with WithInstallationID or SetInstallationID before they
// are used; otherwise they fail with a validation error. Responses arrive as
// {"data": ...} and are unwrapped into the records of package models.
//
// Tokens come from any client.TokenSource. ClientCredentials performs the
// OAuth2 client-credentials grant:
//
//	om, err := cloud.New(cloud.ClientCredentials(id, secret),
//		cloud.WithInstallationID(21))
//	if err != nil {
//		return err
//	}
//	defer om.Close()
//
//	outputs, err := om.Outputs.GetAll(ctx)
package cloud
