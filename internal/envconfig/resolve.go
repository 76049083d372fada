// Package envconfig turns the hosting platform's environment variables into
// an immutable Settings value. Nothing downstream reads the environment again.
package envconfig

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"strconv"
	"strings"
)

// Platform-supplied variables.
const (
	EnvPort             = "PORT"
	EnvExternalHostname = "RENDER_EXTERNAL_HOSTNAME"
	EnvHostname         = "HOSTNAME"
	EnvSessionKey       = "SESSION_KEY"
	EnvAllowNewAccounts = "ALLOW_NEW_ACCOUNTS"
	EnvWebRTC           = "WEBRTC"
	EnvMinify           = "MINIFY"
	EnvAllowFraming     = "IFRAME"
)

const (
	DefaultPort     = 10000
	DefaultHostname = "localhost"

	sessionKeyBytes = 32
)

// Settings is constructed once per run and never mutated.
type Settings struct {
	Port             int    `json:"port"`
	Hostname         string `json:"hostname"`
	SessionKey       string `json:"session_key"`
	AllowNewAccounts bool   `json:"allow_new_accounts"`
	EnableWebRTC     bool   `json:"webrtc"`
	Minify           bool   `json:"minify"`
	AllowFraming     bool   `json:"allow_framing"`

	// SessionKeyGenerated is true when no secret was supplied and one was
	// generated for this run only.
	SessionKeyGenerated bool `json:"session_key_generated"`
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Resolver reads Settings from a lookup function. Random is the entropy
// source for generated session keys.
type Resolver struct {
	Lookup LookupFunc
	Random io.Reader
}

// FromOS returns a resolver backed by the process environment.
func FromOS() *Resolver {
	return &Resolver{Lookup: os.LookupEnv, Random: rand.Reader}
}

// FromMap returns a resolver backed by a fixed map.
func FromMap(env map[string]string) *Resolver {
	return &Resolver{
		Lookup: func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		},
		Random: rand.Reader,
	}
}

// Resolve never fails: every malformed or missing input degrades to its default.
func (r *Resolver) Resolve() Settings {
	s := Settings{
		Port:             r.port(),
		Hostname:         r.hostname(),
		AllowNewAccounts: r.flag(EnvAllowNewAccounts, true),
		EnableWebRTC:     r.flag(EnvWebRTC, false),
		Minify:           r.flag(EnvMinify, true),
		AllowFraming:     r.flag(EnvAllowFraming, false),
	}

	if key := r.get(EnvSessionKey); key != "" {
		s.SessionKey = key
	} else {
		s.SessionKey = r.generateSessionKey()
		s.SessionKeyGenerated = true
	}

	return s
}

// Resolve is shorthand for FromOS().Resolve().
func Resolve() Settings {
	return FromOS().Resolve()
}

func (r *Resolver) get(key string) string {
	if r.Lookup == nil {
		return ""
	}
	v, ok := r.Lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func (r *Resolver) port() int {
	port, err := strconv.Atoi(r.get(EnvPort))
	if err != nil || port <= 0 || port > 65535 {
		return DefaultPort
	}
	return port
}

// hostname prefers the platform's external hostname: the container's own
// HOSTNAME is an internal name certificates must not be issued for.
func (r *Resolver) hostname() string {
	for _, key := range []string{EnvExternalHostname, EnvHostname} {
		if v := r.get(key); v != "" {
			return v
		}
	}
	return DefaultHostname
}

func (r *Resolver) flag(key string, def bool) bool {
	v := r.get(key)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true")
}

func (r *Resolver) generateSessionKey() string {
	src := r.Random
	if src == nil {
		src = rand.Reader
	}
	buf := make([]byte, sessionKeyBytes)
	if _, err := io.ReadFull(src, buf); err != nil {
		// crypto/rand does not fail on supported platforms; fall back to it
		// if a caller-provided source runs dry.
		_, _ = io.ReadFull(rand.Reader, buf)
	}
	return hex.EncodeToString(buf)
}

// Redacted returns a copy safe to print or log.
func (s Settings) Redacted() Settings {
	if s.SessionKey != "" {
		s.SessionKey = "<redacted>"
	}
	return s
}
