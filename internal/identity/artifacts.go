package identity

// CertificateArtifacts are the key/certificate pairs the server generates in
// its data directory. Each is bound to the hostname that was in config.json
// when it was created.
var CertificateArtifacts = []string{
	"webserver-cert-public.crt",
	"webserver-cert-private.key",
	"agentserver-cert-public.crt",
	"agentserver-cert-private.key",
	"root-cert-public.crt",
	"root-cert-private.key",
	"mpsserver-cert-public.crt",
	"mpsserver-cert-private.key",
	"codesign-cert-public.crt",
	"codesign-cert-private.key",
}
