package mongo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbh-project/rbh/pkg/rbh/uri"
)

func parseURI(t *testing.T, raw string) *uri.URI {
	t.Helper()
	u, err := uri.Parse(raw)
	require.NoError(t, err)
	return u
}
