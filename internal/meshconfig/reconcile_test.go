package meshconfig

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/meshrender/internal/envconfig"
)

func testSettings() envconfig.Settings {
	return envconfig.Settings{
		Port:             10000,
		Hostname:         "app.example.com",
		SessionKey:       "secret",
		AllowNewAccounts: true,
		Minify:           true,
	}
}

func newTestReconciler(t *testing.T) *Reconciler {
	t.Helper()
	return NewReconciler(filepath.Join(t.TempDir(), "config.json"))
}

func readSettings(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	settings, ok := doc["settings"].(map[string]interface{})
	require.True(t, ok, "settings missing in %s", data)
	return settings
}

func TestReconcileCreatesOnFirstRun(t *testing.T) {
	r := newTestReconciler(t)

	res, err := r.Reconcile(testSettings())
	require.NoError(t, err)
	assert.Equal(t, ModeCreated, res.Mode)
	assert.NoError(t, res.Warning)

	settings := readSettings(t, r.Path)
	assert.Equal(t, float64(10000), settings["port"])
	assert.Equal(t, float64(443), settings["aliasPort"])
	assert.Equal(t, float64(0), settings["redirPort"])
	assert.Equal(t, float64(0), settings["mpsPort"])
	assert.Equal(t, "app.example.com", settings["cert"])
	assert.Equal(t, "0.0.0.0/0", settings["trustedProxy"])
	assert.Equal(t, "secret", settings["sessionKey"])
	assert.Equal(t, float64(60), settings["agentPong"])
	assert.Equal(t, false, settings["wsCompression"])
	assert.Equal(t, map[string]interface{}{"enabled": false}, settings["plugins"])

	info, err := os.Stat(r.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(configFileMode), info.Mode().Perm())
}

func TestCreatedDocumentLayout(t *testing.T) {
	data, err := NewDocument(testSettings()).Encode()
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "{\n  \"$schema\": \""+SchemaURL+"\","), text)
	assert.False(t, strings.HasSuffix(text, "\n"))

	var doc struct {
		Domains map[string]map[string]interface{} `json:"domains"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	site := doc.Domains[""]
	assert.Equal(t, "MeshCentral", site["title"])
	assert.Equal(t, "Remote Management", site["title2"])
	assert.Equal(t, true, site["minify"])
	assert.Equal(t, true, site["newAccounts"])
	assert.Equal(t, false, site["localSessionRecording"])
	assert.Equal(t, false, site["allowedOrigin"])
}

func TestReconcileMergePreservesOperatorFields(t *testing.T) {
	r := newTestReconciler(t)
	require.NoError(t, os.WriteFile(r.Path, []byte(`{"settings":{"customField":42}}`), 0o644))

	res, err := r.Reconcile(testSettings())
	require.NoError(t, err)
	assert.Equal(t, ModeMerged, res.Mode)

	settings := readSettings(t, r.Path)
	assert.Equal(t, float64(42), settings["customField"])
	assert.Equal(t, float64(10000), settings["port"])
	assert.Equal(t, "app.example.com", settings["cert"])
	assert.Equal(t, "0.0.0.0/0", settings["trustedProxy"])
	// Merge never adds non-mandated fields.
	assert.NotContains(t, settings, "sessionKey")
}

func TestReconcileMergeOverwritesMandatedFields(t *testing.T) {
	r := newTestReconciler(t)
	existing := `{
  "settings": {"port": 443, "aliasPort": 8443, "redirPort": 80, "mpsPort": 4433,
    "tlsOffload": false, "exactPorts": false, "WANonly": false, "LANonly": true,
    "cert": "old.example.com", "agentPong": 300, "selfUpdate": true},
  "domains": {"": {"title": "Ops & Support", "userQuota": 1048576}},
  "smtp": {"host": "mail.example.com"}
}`
	require.NoError(t, os.WriteFile(r.Path, []byte(existing), 0o644))

	_, err := r.Reconcile(testSettings())
	require.NoError(t, err)

	settings := readSettings(t, r.Path)
	assert.Equal(t, float64(10000), settings["port"])
	assert.Equal(t, float64(443), settings["aliasPort"])
	assert.Equal(t, float64(0), settings["redirPort"])
	assert.Equal(t, float64(0), settings["mpsPort"])
	assert.Equal(t, true, settings["tlsOffload"])
	assert.Equal(t, true, settings["exactPorts"])
	assert.Equal(t, true, settings["WANonly"])
	assert.Equal(t, "app.example.com", settings["cert"])
	assert.Equal(t, float64(60), settings["agentPong"])

	assert.Equal(t, true, settings["LANonly"])
	assert.Equal(t, true, settings["selfUpdate"])

	data, err := os.ReadFile(r.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title": "Ops & Support"`)
	assert.Contains(t, string(data), `"userQuota": 1048576`)
	assert.Contains(t, string(data), `"host": "mail.example.com"`)
}

func TestReconcileTrustedProxy(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		want     interface{}
	}{
		{"absent", `{"settings":{}}`, "0.0.0.0/0"},
		{"empty string", `{"settings":{"trustedProxy":""}}`, "0.0.0.0/0"},
		{"null", `{"settings":{"trustedProxy":null}}`, "0.0.0.0/0"},
		{"operator range", `{"settings":{"trustedProxy":"10.0.0.0/8"}}`, "10.0.0.0/8"},
		{"list", `{"settings":{"trustedProxy":["10.0.0.1","10.0.0.2"]}}`, []interface{}{"10.0.0.1", "10.0.0.2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReconciler(t)
			require.NoError(t, os.WriteFile(r.Path, []byte(tt.existing), 0o644))

			_, err := r.Reconcile(testSettings())
			require.NoError(t, err)

			settings := readSettings(t, r.Path)
			assert.Equal(t, tt.want, settings["trustedProxy"])
		})
	}
}

func TestReconcileMissingSettingsSection(t *testing.T) {
	for _, existing := range []string{`{}`, `{"settings":null}`, `{"domains":{}}`} {
		r := newTestReconciler(t)
		require.NoError(t, os.WriteFile(r.Path, []byte(existing), 0o644))

		res, err := r.Reconcile(testSettings())
		require.NoError(t, err)
		assert.Equal(t, ModeMerged, res.Mode, existing)

		settings := readSettings(t, r.Path)
		assert.Equal(t, float64(10000), settings["port"], existing)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	r := newTestReconciler(t)
	require.NoError(t, os.WriteFile(r.Path, []byte(`{"settings":{"customField":42,"port":1}}`), 0o644))

	_, err := r.Reconcile(testSettings())
	require.NoError(t, err)
	first, err := os.ReadFile(r.Path)
	require.NoError(t, err)

	_, err = r.Reconcile(testSettings())
	require.NoError(t, err)
	second, err := os.ReadFile(r.Path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestReconcileCreatedThenMergedIsStable(t *testing.T) {
	r := newTestReconciler(t)

	res, err := r.Reconcile(testSettings())
	require.NoError(t, err)
	require.Equal(t, ModeCreated, res.Mode)
	created, err := os.ReadFile(r.Path)
	require.NoError(t, err)

	res, err = r.Reconcile(testSettings())
	require.NoError(t, err)
	require.Equal(t, ModeMerged, res.Mode)
	merged, err := os.ReadFile(r.Path)
	require.NoError(t, err)

	assert.Equal(t, string(created), string(merged))
}

func TestReconcileToleratesComments(t *testing.T) {
	r := newTestReconciler(t)
	existing := `{
  // edited by hand
  "settings": {
    "port": 1, /* overwritten */
    "customField": 42,
  },
}`
	require.NoError(t, os.WriteFile(r.Path, []byte(existing), 0o644))

	res, err := r.Reconcile(testSettings())
	require.NoError(t, err)
	assert.Equal(t, ModeMerged, res.Mode)

	settings := readSettings(t, r.Path)
	assert.Equal(t, float64(10000), settings["port"])
	assert.Equal(t, float64(42), settings["customField"])
}

func TestReconcileInvalidDocumentIsLeftUntouched(t *testing.T) {
	tests := []struct {
		name     string
		existing string
	}{
		{"syntax error", `{"settings": {"port": `},
		{"not an object", `[1, 2, 3]`},
		{"null document", `null`},
		{"settings is a list", `{"settings": []}`},
		{"settings is a string", `{"settings": "port=10000"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReconciler(t)
			require.NoError(t, os.WriteFile(r.Path, []byte(tt.existing), 0o644))

			res, err := r.Reconcile(testSettings())
			require.NoError(t, err)
			assert.Equal(t, ModeSkipped, res.Mode)

			var perr *ParseError
			require.True(t, errors.As(res.Warning, &perr), "warning %v is not a ParseError", res.Warning)
			assert.Equal(t, r.Path, perr.Path)

			data, err := os.ReadFile(r.Path)
			require.NoError(t, err)
			assert.Equal(t, tt.existing, string(data))
		})
	}
}

func TestReconcileDropsCaseVariantMandatedKeys(t *testing.T) {
	r := newTestReconciler(t)
	require.NoError(t, os.WriteFile(r.Path, []byte(`{"settings":{"Port":80,"CERT":"old.example.com","agentpong":5}}`), 0o644))

	_, err := r.Reconcile(testSettings())
	require.NoError(t, err)

	settings := readSettings(t, r.Path)
	assert.NotContains(t, settings, "Port")
	assert.NotContains(t, settings, "CERT")
	assert.NotContains(t, settings, "agentpong")
	assert.Equal(t, float64(10000), settings["port"])
}

func TestReconcileKeepsMistypedOptionalFields(t *testing.T) {
	r := newTestReconciler(t)
	require.NoError(t, os.WriteFile(r.Path, []byte(`{"settings":{"selfUpdate":"yes","port":"10000"}}`), 0o644))

	_, err := r.Reconcile(testSettings())
	require.NoError(t, err)

	settings := readSettings(t, r.Path)
	assert.Equal(t, "yes", settings["selfUpdate"])
	assert.Equal(t, float64(10000), settings["port"])
}

func TestDrift(t *testing.T) {
	r := newTestReconciler(t)
	_, err := r.Reconcile(testSettings())
	require.NoError(t, err)

	drift, err := r.Drift(testSettings())
	require.NoError(t, err)
	assert.Empty(t, drift)

	moved := testSettings()
	moved.Hostname = "new.example.com"
	moved.Port = 8080
	drift, err = r.Drift(moved)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"port", "cert"}, drift)
}

func TestDriftOnBareDocument(t *testing.T) {
	doc, err := Parse("config.json", []byte(`{"settings":{"trustedProxy":"10.0.0.0/8"}}`))
	require.NoError(t, err)

	assert.ElementsMatch(t, MandatedKeys, doc.Drift(testSettings()))
}
