// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-core-stack/core/errors"
	"gopkg.in/yaml.v2"
)

const (
	// default internal platform API the gateway forwards to
	defaultUpstreamURL = "http://localhost:8000"

	// default timeout in seconds for a forwarded request
	defaultUpstreamTimeout = 30

	// default number of requests allowed per client in a window
	defaultRateLimitRequests = 60

	// default rate limit window in seconds
	defaultRateLimitWindow = 60

	// default identity cache ttl in seconds
	defaultIdentityCacheTTL = 300

	// default syntactic floor for a bearer credential
	defaultMinCredentialLength = 32
)

// Rate limit key sources
const (
	KeySourceRemote    = "remote"
	KeySourceForwarded = "forwarded"
)

// Identity backends
const (
	BackendStatic   = "static"
	BackendMongo    = "mongo"
	BackendOIDC     = "oidc"
	BackendKeycloak = "keycloak"
	BackendJWT      = "jwt"
)

// listener config for the gateway process
type Server struct {
	Host           string `yaml:"host,omitempty"`
	Port           string `yaml:"port,omitempty"`
	Debug          bool   `yaml:"debug,omitempty"`
	GrpcHealthPort string `yaml:"grpcHealthPort,omitempty"`
	CorsOrigins    string `yaml:"corsOrigins,omitempty"`
}

// Addr returns the host:port the HTTP listener binds to
func (s *Server) Addr() string {
	return s.Host + ":" + s.Port
}

// internal platform API config
type Upstream struct {
	URL    string `yaml:"url,omitempty"`
	APIKey string `yaml:"apiKey,omitempty"`

	// timeout in seconds
	Timeout     int  `yaml:"timeout,omitempty"`
	EnableHTTP2 bool `yaml:"enableHTTP2,omitempty"`
}

// GetTimeout returns the forwarding timeout as a duration
func (u *Upstream) GetTimeout() time.Duration {
	return time.Duration(u.Timeout) * time.Second
}

// per client rate limit config
type RateLimit struct {
	Requests int `yaml:"requests,omitempty"`

	// window in seconds
	Window    int    `yaml:"window,omitempty"`
	KeySource string `yaml:"keySource,omitempty"`
	RedisAddr string `yaml:"redisAddr,omitempty"`
}

// GetWindow returns the rate limit window as a duration
func (r *RateLimit) GetWindow() time.Duration {
	return time.Duration(r.Window) * time.Second
}

// authorization config
type Auth struct {
	AllowedAdmins       []string `yaml:"allowedAdmins,omitempty"`
	MinCredentialLength int      `yaml:"minCredentialLength,omitempty"`
}

type OIDC struct {
	Issuer   string `yaml:"issuer,omitempty"`
	ClientID string `yaml:"clientId,omitempty"`
}

type Keycloak struct {
	URL          string `yaml:"url,omitempty"`
	Realm        string `yaml:"realm,omitempty"`
	ClientID     string `yaml:"clientId,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty"`

	// skip TLS verification towards keycloak
	SkipTLSVerify bool `yaml:"skipTLSVerify,omitempty"`
}

type JWT struct {
	Secret string `yaml:"secret,omitempty"`
	Issuer string `yaml:"issuer,omitempty"`
}

// identity resolver config, Backend selects which of the
// backend specific sections is used
type Identity struct {
	Backend string `yaml:"backend,omitempty"`

	// path to the static identity file
	File string `yaml:"file,omitempty"`

	// cache ttl in seconds, zero disables caching
	CacheTTL *int `yaml:"cacheTTL,omitempty"`

	MongoURI string    `yaml:"mongoURI,omitempty"`
	OIDC     *OIDC     `yaml:"oidc,omitempty"`
	Keycloak *Keycloak `yaml:"keycloak,omitempty"`
	JWT      *JWT      `yaml:"jwt,omitempty"`
}

// GetCacheTTL returns the identity cache ttl as a duration
func (i *Identity) GetCacheTTL() time.Duration {
	if i.CacheTTL == nil {
		return defaultIdentityCacheTTL * time.Second
	}
	return time.Duration(*i.CacheTTL) * time.Second
}

// audit sink config
type Audit struct {
	Enabled *bool `yaml:"enabled,omitempty"`

	// audit log file, stdout when empty
	File string `yaml:"file,omitempty"`
}

// IsEnabled reports whether audit records are emitted, defaults to true
func (a *Audit) IsEnabled() bool {
	if a.Enabled == nil {
		return true
	}
	return *a.Enabled
}

type Tracing struct {
	// none or stdout
	Exporter string `yaml:"exporter,omitempty"`
}

// Base config struct
type BaseConfig struct {
	Server    *Server    `yaml:"server,omitempty"`
	Upstream  *Upstream  `yaml:"upstream,omitempty"`
	RateLimit *RateLimit `yaml:"rateLimit,omitempty"`
	Auth      *Auth      `yaml:"auth,omitempty"`
	Identity  *Identity  `yaml:"identity,omitempty"`
	Audit     *Audit     `yaml:"audit,omitempty"`
	Tracing   *Tracing   `yaml:"tracing,omitempty"`
}

// get listener config, filling in defaults for the fields
// not provided
func (c *BaseConfig) GetServer() *Server {
	s := Server{}
	if c.Server != nil {
		s = *c.Server
	}
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == "" {
		s.Port = "8080"
	}
	if s.CorsOrigins == "" {
		s.CorsOrigins = "*"
	}
	return &s
}

// get internal platform API config, filling in defaults
func (c *BaseConfig) GetUpstream() *Upstream {
	u := Upstream{}
	if c.Upstream != nil {
		u = *c.Upstream
	}
	if u.URL == "" {
		u.URL = defaultUpstreamURL
	}
	if u.Timeout <= 0 {
		u.Timeout = defaultUpstreamTimeout
	}
	return &u
}

// get rate limit config, filling in defaults
func (c *BaseConfig) GetRateLimit() *RateLimit {
	r := RateLimit{}
	if c.RateLimit != nil {
		r = *c.RateLimit
	}
	if r.Requests <= 0 {
		r.Requests = defaultRateLimitRequests
	}
	if r.Window <= 0 {
		r.Window = defaultRateLimitWindow
	}
	if r.KeySource == "" {
		r.KeySource = KeySourceRemote
	}
	return &r
}

// get authorization config, filling in defaults
func (c *BaseConfig) GetAuth() *Auth {
	a := Auth{}
	if c.Auth != nil {
		a = *c.Auth
	}
	if a.MinCredentialLength <= 0 {
		a.MinCredentialLength = defaultMinCredentialLength
	}
	return &a
}

// get identity resolver config, filling in defaults
func (c *BaseConfig) GetIdentity() *Identity {
	i := Identity{}
	if c.Identity != nil {
		i = *c.Identity
	}
	if i.Backend == "" {
		i.Backend = BackendStatic
	}
	if i.OIDC == nil {
		i.OIDC = &OIDC{}
	}
	if i.Keycloak == nil {
		i.Keycloak = &Keycloak{}
	}
	if i.JWT == nil {
		i.JWT = &JWT{}
	}
	return &i
}

// get audit config
func (c *BaseConfig) GetAudit() *Audit {
	if c.Audit != nil {
		return c.Audit
	}
	return &Audit{}
}

// get tracing config
func (c *BaseConfig) GetTracing() *Tracing {
	t := Tracing{}
	if c.Tracing != nil {
		t = *c.Tracing
	}
	if t.Exporter == "" {
		t.Exporter = "none"
	}
	return &t
}

// Validate checks the values that cannot be defaulted
func (c *BaseConfig) Validate() error {
	switch ks := c.GetRateLimit().KeySource; ks {
	case KeySourceRemote, KeySourceForwarded:
	default:
		return errors.Wrapf(errors.InvalidArgument, "invalid rate limit key source %q", ks)
	}

	id := c.GetIdentity()
	switch id.Backend {
	case BackendStatic:
	case BackendMongo:
		if id.MongoURI == "" {
			return errors.Wrapf(errors.InvalidArgument, "mongo identity backend requires a mongo uri")
		}
	case BackendOIDC:
		if id.OIDC.Issuer == "" || id.OIDC.ClientID == "" {
			return errors.Wrapf(errors.InvalidArgument, "oidc identity backend requires issuer and client id")
		}
	case BackendKeycloak:
		if id.Keycloak.URL == "" || id.Keycloak.Realm == "" || id.Keycloak.ClientID == "" {
			return errors.Wrapf(errors.InvalidArgument, "keycloak identity backend requires url, realm and client id")
		}
	case BackendJWT:
		if id.JWT.Secret == "" {
			return errors.Wrapf(errors.InvalidArgument, "jwt identity backend requires a secret")
		}
	default:
		return errors.Wrapf(errors.InvalidArgument, "unknown identity backend %q", id.Backend)
	}

	switch exp := c.GetTracing().Exporter; exp {
	case "none", "stdout":
	default:
		return errors.Wrapf(errors.InvalidArgument, "unknown tracing exporter %q", exp)
	}
	return nil
}

// Parse YAML Config file from the provided config file path
// and overlay the environment variables on top of it.
// returns pointer to config structure and error if failed to
// generate the config struct.
// This also ensures handling scenarios when no config file
// is provided
func ParseConfig(filePath string) (*BaseConfig, error) {
	config := &BaseConfig{}
	// Process config file if file path is provided
	if filePath != "" {
		// open the provided config file
		file, err := os.Open(filePath)
		if err != nil {
			return nil, err
		}
		// ensure that we close the file before returning from
		// here, following constructs of release the unused
		// resources for garbage collector to kick in
		defer func() {
			_ = file.Close()
		}()

		// Get a new Yaml decoder
		decoder := yaml.NewDecoder(file)
		// decode the provided yaml config from the config file
		if err := decoder.Decode(config); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(config, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides config values with the ones available in the
// environment, environment always wins over the config file
func applyEnv(c *BaseConfig, lookup lookupFunc) error {
	if c.Server == nil {
		c.Server = &Server{}
	}
	if c.Upstream == nil {
		c.Upstream = &Upstream{}
	}
	if c.RateLimit == nil {
		c.RateLimit = &RateLimit{}
	}
	if c.Auth == nil {
		c.Auth = &Auth{}
	}
	if c.Identity == nil {
		c.Identity = &Identity{}
	}
	if c.Identity.OIDC == nil {
		c.Identity.OIDC = &OIDC{}
	}
	if c.Identity.Keycloak == nil {
		c.Identity.Keycloak = &Keycloak{}
	}
	if c.Identity.JWT == nil {
		c.Identity.JWT = &JWT{}
	}
	if c.Audit == nil {
		c.Audit = &Audit{}
	}
	if c.Tracing == nil {
		c.Tracing = &Tracing{}
	}

	strs := map[string]*string{
		"GATEWAY_HOST":               &c.Server.Host,
		"GATEWAY_PORT":               &c.Server.Port,
		"GATEWAY_GRPC_HEALTH_PORT":   &c.Server.GrpcHealthPort,
		"GATEWAY_CORS_ORIGINS":       &c.Server.CorsOrigins,
		"JAI_INTERNAL_API_URL":       &c.Upstream.URL,
		"JAI_INTERNAL_API_KEY":       &c.Upstream.APIKey,
		"JAI_RATE_LIMIT_KEY":         &c.RateLimit.KeySource,
		"JAI_REDIS_ADDR":             &c.RateLimit.RedisAddr,
		"JAI_IDENTITY_BACKEND":       &c.Identity.Backend,
		"JAI_IDENTITY_FILE":          &c.Identity.File,
		"JAI_MONGO_URI":              &c.Identity.MongoURI,
		"JAI_OIDC_ISSUER":            &c.Identity.OIDC.Issuer,
		"JAI_OIDC_CLIENT_ID":         &c.Identity.OIDC.ClientID,
		"JAI_KEYCLOAK_URL":           &c.Identity.Keycloak.URL,
		"JAI_KEYCLOAK_REALM":         &c.Identity.Keycloak.Realm,
		"JAI_KEYCLOAK_CLIENT_ID":     &c.Identity.Keycloak.ClientID,
		"JAI_KEYCLOAK_CLIENT_SECRET": &c.Identity.Keycloak.ClientSecret,
		"JAI_JWT_SECRET":             &c.Identity.JWT.Secret,
		"JAI_JWT_ISSUER":             &c.Identity.JWT.Issuer,
		"JAI_AUDIT_LOG_FILE":         &c.Audit.File,
		"JAI_TRACING_EXPORTER":       &c.Tracing.Exporter,
	}
	for key, dst := range strs {
		if val, ok := lookup(key); ok {
			*dst = strings.TrimSpace(val)
		}
	}

	ints := map[string]*int{
		"JAI_PROXY_TIMEOUT":         &c.Upstream.Timeout,
		"JAI_RATE_LIMIT_REQUESTS":   &c.RateLimit.Requests,
		"JAI_RATE_LIMIT_WINDOW":     &c.RateLimit.Window,
		"JAI_MIN_CREDENTIAL_LENGTH": &c.Auth.MinCredentialLength,
	}
	for key, dst := range ints {
		val, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return errors.Wrapf(errors.InvalidArgument, "invalid value %q for %s: %s", val, key, err)
		}
		*dst = n
	}

	if val, ok := lookup("JAI_CACHE_TTL"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return errors.Wrapf(errors.InvalidArgument, "invalid value %q for JAI_CACHE_TTL: %s", val, err)
		}
		c.Identity.CacheTTL = &n
	}

	if val, ok := lookup("GATEWAY_DEBUG"); ok {
		c.Server.Debug = strings.EqualFold(strings.TrimSpace(val), "true")
	}
	if val, ok := lookup("JAI_AUDIT_ENABLED"); ok {
		enabled := strings.EqualFold(strings.TrimSpace(val), "true")
		c.Audit.Enabled = &enabled
	}
	if val, ok := lookup("JAI_ALLOWED_ADMINS"); ok {
		c.Auth.AllowedAdmins = SplitList(val)
	}
	return nil
}

// SplitList splits a comma separated list, dropping empty items
func SplitList(val string) []string {
	var list []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
