package contract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load()
	require.NoError(t, err)

	for _, path := range []string{
		"/integrations/link-token",
		"/integrations",
		"/integrations/{integration_id}",
		"/integrations/{integration_id}/account",
		"/integrations/{integration_id}/backfill",
		"/organizations/{organization_id}/compliance-profile",
		"/audit/events",
		"/audit/verify",
	} {
		require.NotNil(t, doc.Paths.Find(path), path)
	}
}
