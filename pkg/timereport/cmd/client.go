package cmd

import (
	"github.com/timereport/timereport-cli/pkg/timereport/client"
	"github.com/timereport/timereport-cli/pkg/version"
)

func buildClient(rt *runtimeState) (*client.Client, error) {
	cred, err := rt.requireCredential()
	if err != nil {
		return nil, err
	}
	timeout, err := rt.Settings().RequestTimeoutDuration()
	if err != nil {
		return nil, err
	}
	return client.New(cred,
		client.WithUserAgent("timereport/"+version.Version),
		client.WithTimeout(timeout),
		client.WithLogger(rt.Logger()),
	)
}
