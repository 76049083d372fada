package meshconfig

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/psantana5/meshrender/internal/envconfig"
)

// MandatedKeys are the settings the hosting platform dictates. They are
// forced to the current run's values on every start.
var MandatedKeys = []string{
	"port",
	"aliasPort",
	"redirPort",
	"mpsPort",
	"tlsOffload",
	"exactPorts",
	"WANonly",
	"cert",
	"agentPong",
}

// NewDocument builds the complete first-run configuration.
func NewDocument(s envconfig.Settings) *Document {
	return &Document{
		Schema: SchemaURL,
		Settings: &Settings{
			Plugins:                 json.RawMessage(`{"enabled":false}`),
			Cert:                    ptr(s.Hostname),
			WANOnly:                 ptr(true),
			Port:                    ptr(s.Port),
			AliasPort:               ptr(AliasPort),
			RedirPort:               ptr(0),
			MPSPort:                 ptr(0),
			TLSOffload:              ptr(true),
			TrustedProxy:            quoted(TrustedProxyAny),
			ExactPorts:              ptr(true),
			SessionKey:              ptr(s.SessionKey),
			AllowFraming:            ptr(s.AllowFraming),
			WebRTC:                  ptr(s.EnableWebRTC),
			SelfUpdate:              ptr(false),
			AgentPong:               ptr(AgentPongSeconds),
			AllowLoginToken:         ptr(true),
			AllowHighQualityDesktop: ptr(true),
			AgentCoreDump:           ptr(false),
			Compression:             ptr(true),
			WSCompression:           ptr(false),
			AgentWSCompression:      ptr(false),
		},
		Domains: map[string]*Domain{
			"": {
				Title:                 ptr(DefaultTitle),
				Title2:                ptr(DefaultTitle2),
				Minify:                ptr(s.Minify),
				NewAccounts:           ptr(s.AllowNewAccounts),
				LocalSessionRecording: ptr(false),
				AllowedOrigin:         ptr(false),
			},
		},
	}
}

// ApplyPlatform overlays the mandated subset onto an existing document and
// leaves every other field as it was. The server matches setting keys
// case-insensitively, so differently cased copies of a mandated key are
// dropped to keep the forced value authoritative.
func (d *Document) ApplyPlatform(s envconfig.Settings) {
	if d.Settings == nil {
		d.Settings = &Settings{}
	}
	st := d.Settings

	for k := range st.Extra {
		if isMandated(k) {
			delete(st.Extra, k)
		}
	}

	st.Port = ptr(s.Port)
	st.AliasPort = ptr(AliasPort)
	st.RedirPort = ptr(0)
	st.MPSPort = ptr(0)
	st.TLSOffload = ptr(true)
	st.ExactPorts = ptr(true)
	st.WANOnly = ptr(true)
	st.Cert = ptr(s.Hostname)
	st.AgentPong = ptr(AgentPongSeconds)

	if !st.hasTrustedProxy() {
		for k := range st.Extra {
			if strings.EqualFold(k, "trustedProxy") {
				delete(st.Extra, k)
			}
		}
		st.TrustedProxy = quoted(TrustedProxyAny)
	}
}

// Drift lists the mandated keys whose current value differs from what
// ApplyPlatform would write for s. An empty result means a merge would
// leave the mandated subset unchanged.
func (d *Document) Drift(s envconfig.Settings) []string {
	want := &Document{Settings: &Settings{}}
	want.ApplyPlatform(s)

	var have *Settings
	if d.Settings != nil {
		have = d.Settings
	} else {
		have = &Settings{}
	}

	var drift []string
	for _, key := range MandatedKeys {
		if !reflect.DeepEqual(fieldByKey(have, key), fieldByKey(want.Settings, key)) || hasCaseVariant(have.Extra, key) {
			drift = append(drift, key)
		}
	}
	if !have.hasTrustedProxy() {
		drift = append(drift, "trustedProxy")
	}
	return drift
}

// hasTrustedProxy reports whether any spelling of trustedProxy carries a
// value the server would honour.
func (st *Settings) hasTrustedProxy() bool {
	if !isFalsy(st.TrustedProxy) {
		return true
	}
	for k, v := range st.Extra {
		if strings.EqualFold(k, "trustedProxy") && !isFalsy(v) {
			return true
		}
	}
	return false
}

func isMandated(key string) bool {
	for _, m := range MandatedKeys {
		if strings.EqualFold(key, m) {
			return true
		}
	}
	return false
}

func hasCaseVariant(extra map[string]json.RawMessage, key string) bool {
	for k := range extra {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// fieldByKey returns the dereferenced value of the Settings field tagged
// with key, or nil when it is unset.
func fieldByKey(st *Settings, key string) interface{} {
	rv := reflect.ValueOf(st).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if jsonKey(rt.Field(i)) != key {
			continue
		}
		f := rv.Field(i)
		if f.Kind() == reflect.Ptr {
			if f.IsNil() {
				return nil
			}
			return f.Elem().Interface()
		}
		return f.Interface()
	}
	return nil
}

func quoted(s string) json.RawMessage {
	b, _ := marshal(s)
	return json.RawMessage(b)
}
