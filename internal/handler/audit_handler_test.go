package handler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-inspector/internal/model"
)

func TestAuditQueryFromURL(t *testing.T) {
	query, err := auditQueryFromURL(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, model.AuditQuery{Page: 1, Limit: 50}, query)

	query, err = auditQueryFromURL(url.Values{
		"action": {" auth.login_failed "},
		"status": {"FAILURE"},
		"page":   {"3"},
		"limit":  {"500"},
	})
	require.NoError(t, err)
	assert.Equal(t, "auth.login_failed", query.Action)
	assert.Equal(t, "failure", query.Status)
	assert.Equal(t, 3, query.Page)
	assert.Equal(t, 500, query.Limit, "clamped by the repository, not here")

	rejected := []url.Values{
		{"page": {"0"}},
		{"limit": {"ten"}},
		{"status": {"maybe"}},
		{"actor_id": {"not-a-uuid"}},
	}
	for _, values := range rejected {
		_, err := auditQueryFromURL(values)
		assert.ErrorIs(t, err, model.ErrValidation, values.Encode())
	}
}
