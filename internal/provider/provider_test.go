package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_WireNames(t *testing.T) {
	// Saved column configs depend on these exact names.
	want := map[Kind]string{
		LinkedInFull:  "fullEnrichFromLinkedIn",
		EmailFull:     "fullEnrichFromEmail",
		CompanyOnly:   "enrichCompanyOnly",
		MatchProspect: "matchProspect",
		ContactOnly:   "enrichProspectContact",
		ProfileOnly:   "enrichProspectProfile",
	}
	for k, name := range want {
		assert.Equal(t, name, k.String())

		parsed, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKind("somethingElse")
	assert.Error(t, err)
}

func TestKinds_CoversAll(t *testing.T) {
	ks := Kinds()
	assert.Len(t, ks, len(wireNames))
	for _, k := range ks {
		assert.True(t, k.Valid())
	}
}

func TestHTTPProvider_Enrich(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/fullEnrichFromEmail", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["input"])

		json.NewEncoder(w).Encode(map[string]any{
			"person": map[string]any{"name": "Ada"},
		})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "key-1", nil)
	result, err := p.Enrich(context.Background(), EmailFull, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", result["person"].(map[string]any)["name"])
}

func TestHTTPProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no match found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", nil)
	_, err := p.Enrich(context.Background(), MatchProspect, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
