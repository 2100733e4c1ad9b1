// Package fakes provides in-memory test doubles for the AWS SDK clients
// used by secretseed.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior, including injected errors and observed deletions.
//
// Usage:
//
//	client := fakes.NewFakeSecretsManagerClient()
//	client.AddError("app-db_pass-abc123", errors.New("ThrottlingException"))
//	s := sink.NewSecretsManagerSink(client, sink.Options{NamePrefix: "app-"})
//	// Publish, then inspect client.Secrets and client.Deleted...
package fakes
