// Package meshconfig models the server's config.json and reconciles it with
// the platform-resolved settings on every start.
package meshconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	SchemaURL = "https://raw.githubusercontent.com/Ylianst/MeshCentral/master/meshcentral-config-schema.json"

	// AliasPort is the public port behind the platform's TLS edge.
	AliasPort = 443
	// TrustedProxyAny trusts every source: the platform edge is the only path to the listener.
	TrustedProxyAny = "0.0.0.0/0"
	// AgentPongSeconds keeps idle agent connections alive through the edge proxy.
	AgentPongSeconds = 60

	DefaultTitle  = "MeshCentral"
	DefaultTitle2 = "Remote Management"
)

// Document is the whole config.json. Keys this package does not model are
// kept in Extra and written back unchanged.
type Document struct {
	Schema   string             `json:"$schema,omitempty"`
	Settings *Settings          `json:"settings,omitempty"`
	Domains  map[string]*Domain `json:"domains,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Settings is the "settings" section.
type Settings struct {
	Plugins                 json.RawMessage `json:"plugins,omitempty"`
	Cert                    *string         `json:"cert,omitempty"`
	WANOnly                 *bool           `json:"WANonly,omitempty"`
	Port                    *int            `json:"port,omitempty"`
	AliasPort               *int            `json:"aliasPort,omitempty"`
	RedirPort               *int            `json:"redirPort,omitempty"`
	MPSPort                 *int            `json:"mpsPort,omitempty"`
	TLSOffload              *bool           `json:"tlsOffload,omitempty"`
	TrustedProxy            json.RawMessage `json:"trustedProxy,omitempty"`
	ExactPorts              *bool           `json:"exactPorts,omitempty"`
	SessionKey              *string         `json:"sessionKey,omitempty"`
	AllowFraming            *bool           `json:"allowFraming,omitempty"`
	WebRTC                  *bool           `json:"webRTC,omitempty"`
	SelfUpdate              *bool           `json:"selfUpdate,omitempty"`
	AgentPong               *int            `json:"agentPong,omitempty"`
	AllowLoginToken         *bool           `json:"allowLoginToken,omitempty"`
	AllowHighQualityDesktop *bool           `json:"allowHighQualityDesktop,omitempty"`
	AgentCoreDump           *bool           `json:"agentCoreDump,omitempty"`
	Compression             *bool           `json:"compression,omitempty"`
	WSCompression           *bool           `json:"wsCompression,omitempty"`
	AgentWSCompression      *bool           `json:"agentWsCompression,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Domain is one entry of the "domains" section; "" is the default site.
type Domain struct {
	Title                 *string `json:"title,omitempty"`
	Title2                *string `json:"title2,omitempty"`
	Minify                *bool   `json:"minify,omitempty"`
	NewAccounts           *bool   `json:"newAccounts,omitempty"`
	LocalSessionRecording *bool   `json:"localSessionRecording,omitempty"`
	AllowedOrigin         *bool   `json:"allowedOrigin,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type (
	documentFields Document
	settingsFields Settings
	domainFields   Domain
)

// UnmarshalJSON decodes leniently: only a "settings" value that is not an
// object is an error, since that is the section the reconciler must write.
func (d *Document) UnmarshalJSON(data []byte) error {
	var fields documentFields
	extra, err := decodeObject(data, &fields)
	if err != nil {
		return err
	}
	if raw, ok := extra["settings"]; ok && !isNull(raw) {
		return fmt.Errorf("settings is not an object: %s", truncate(raw, 40))
	}
	delete(extra, "settings")
	*d = Document(fields)
	d.Extra = extra
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	fields := documentFields(d)
	return encodeObject(&fields, d.Extra)
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	var fields settingsFields
	extra, err := decodeObject(data, &fields)
	if err != nil {
		return err
	}
	*s = Settings(fields)
	s.Extra = extra
	return nil
}

func (s Settings) MarshalJSON() ([]byte, error) {
	fields := settingsFields(s)
	return encodeObject(&fields, s.Extra)
}

func (d *Domain) UnmarshalJSON(data []byte) error {
	var fields domainFields
	extra, err := decodeObject(data, &fields)
	if err != nil {
		return err
	}
	*d = Domain(fields)
	d.Extra = extra
	return nil
}

func (d Domain) MarshalJSON() ([]byte, error) {
	fields := domainFields(d)
	return encodeObject(&fields, d.Extra)
}

// Encode renders the document as 2-space indented JSON.
func (d *Document) Encode() ([]byte, error) {
	compact, err := marshal(d)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func truncate(raw json.RawMessage, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}

func ptr[T any](v T) *T {
	return &v
}
