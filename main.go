// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-core-stack/core/db"
	"github.com/go-core-stack/core/errors"
	"github.com/go-core-stack/core/values"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/go-core-stack/mcp-gateway/pkg/audit"
	"github.com/go-core-stack/mcp-gateway/pkg/auth"
	"github.com/go-core-stack/mcp-gateway/pkg/config"
	"github.com/go-core-stack/mcp-gateway/pkg/controller/identity"
	"github.com/go-core-stack/mcp-gateway/pkg/gateway"
	"github.com/go-core-stack/mcp-gateway/pkg/keycloak"
	"github.com/go-core-stack/mcp-gateway/pkg/metrics"
	"github.com/go-core-stack/mcp-gateway/pkg/ratelimit"
	"github.com/go-core-stack/mcp-gateway/pkg/table"
	"github.com/go-core-stack/mcp-gateway/pkg/telemetry"
)

var (
	// path to config file
	configFile string

	// print version and exit
	showVersion bool

	// set at build time
	version = "dev"
)

const (
	// time allowed for in flight requests to complete on shutdown
	shutdownTimeout = 15 * time.Second
)

// Parse flags for the process
func parseFlags() {
	// Add String variable flag "--config" allowing option to specify
	// the relevant config file for the process
	flag.StringVarP(&configFile, "config", "c", "", "path to the config file")
	flag.BoolVar(&showVersion, "version", false, "print the version and exit")

	// parse the supplied flags
	flag.Parse()
}

// build the identity resolver for the configured backend, wrapped
// with the lookup cache
func createResolver(ctx context.Context, conf *config.BaseConfig) (auth.Resolver, error) {
	id := conf.GetIdentity()

	var backend auth.Resolver
	var tbl *table.IdentityTable
	switch id.Backend {
	case config.BackendStatic:
		r, err := auth.LoadStaticResolver(id.File)
		if err != nil {
			return nil, err
		}
		if r.Len() == 0 {
			log.Printf("no identities configured, every credential will be rejected")
		}
		backend = r
	case config.BackendMongo:
		// Get mongo configdb database Credentials from environment
		// variables, ensuring they are not part of the config files
		username, password := values.GetMongoConfigDBCredentials()
		client, err := db.NewMongoClient(&db.MongoConfig{
			Uri:      id.MongoURI,
			Username: username,
			Password: password,
		})
		if err != nil {
			return nil, err
		}
		if err := client.HealthCheck(ctx); err != nil {
			return nil, errors.Wrapf(errors.Unknown, "failed to perform Health check with DB Error: %s", err)
		}
		tbl, err = table.LocateIdentityTable(client)
		if err != nil {
			return nil, err
		}
		backend = tbl
	case config.BackendOIDC:
		r, err := auth.NewOIDCResolver(ctx, id.OIDC.Issuer, id.OIDC.ClientID, nil)
		if err != nil {
			return nil, err
		}
		backend = r
	case config.BackendKeycloak:
		r, err := keycloak.New(keycloak.Config{
			URL:           id.Keycloak.URL,
			Realm:         id.Keycloak.Realm,
			ClientID:      id.Keycloak.ClientID,
			ClientSecret:  id.Keycloak.ClientSecret,
			SkipTLSVerify: id.Keycloak.SkipTLSVerify,
		})
		if err != nil {
			return nil, err
		}
		backend = r
	case config.BackendJWT:
		backend = auth.NewJWTResolver(id.JWT.Secret, id.JWT.Issuer)
	default:
		return nil, errors.Wrapf(errors.InvalidArgument, "unknown identity backend %q", id.Backend)
	}

	cache := auth.NewCachingResolver(backend, id.GetCacheTTL())
	if tbl != nil {
		// drop cached identities as soon as the table entry changes
		if _, err := identity.NewCacheController(tbl, cache); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

// build the rate limiter, redis backed when an address is configured
func createLimiter(conf *config.BaseConfig, logger *zap.Logger) (ratelimit.Limiter, ratelimit.KeyFunc, func()) {
	rl := conf.GetRateLimit()
	keyFunc := ratelimit.RemoteAddrKey
	if rl.KeySource == config.KeySourceForwarded {
		keyFunc = ratelimit.ForwardedKey
	}

	if rl.RedisAddr == "" {
		return ratelimit.NewMemory(rl.Requests, rl.GetWindow()), keyFunc, func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: rl.RedisAddr})
	limiter := ratelimit.NewRedis(client, rl.Requests, rl.GetWindow(), logger.Named("ratelimit"))
	return limiter, keyFunc, func() {
		_ = client.Close()
	}
}

// start the gRPC health service when a port is configured
func startHealthServer(port string) *gateway.HealthServer {
	if port == "" {
		return nil
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		log.Panicf("failed to start gRPC health server: %s", err)
	}
	srv := gateway.NewHealthServer()
	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Printf("gRPC health server stopped: %s", err)
		}
	}()
	return srv
}

func main() {
	// setup a context for the main function allowing cleanup
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	// Parse the flag options for the process
	parseFlags()
	if showVersion {
		fmt.Println(gateway.SourceName, version)
		return
	}

	conf, err := config.ParseConfig(configFile)
	if err != nil {
		log.Panicf("Failed to parse config: %s", err)
	}
	srvConf := conf.GetServer()
	upConf := conf.GetUpstream()

	logger, err := audit.NewAppLogger(srvConf.Debug)
	if err != nil {
		log.Panicf("failed to create logger: %s", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	auditConf := conf.GetAudit()
	auditLogger := audit.New(audit.Config{
		Enabled: auditConf.IsEnabled(),
		File:    auditConf.File,
	})
	defer func() {
		_ = auditLogger.Sync()
	}()

	shutdownTracing, err := telemetry.SetupTracing(conf.GetTracing().Exporter)
	if err != nil {
		log.Panicf("failed to setup tracing: %s", err)
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	resolver, err := createResolver(ctx, conf)
	if err != nil {
		log.Panicf("failed to create identity resolver: %s", err)
	}

	limiter, keyFunc, closeLimiter := createLimiter(conf, logger)
	defer closeLimiter()

	forwarder, err := gateway.NewForwarder(gateway.ForwarderConfig{
		BaseURL:     upConf.URL,
		Timeout:     upConf.GetTimeout(),
		EnableHTTP2: upConf.EnableHTTP2,
		Logger:      logger.Named("proxy"),
	})
	if err != nil {
		log.Panicf("failed to create forwarder: %s", err)
	}
	defer forwarder.Close()
	logger.Info("proxy initialized for internal api", zap.String("url", upConf.URL))

	prom := metrics.NewProm()
	authConf := conf.GetAuth()
	gw, err := gateway.New(gateway.Config{
		Resolver:            resolver,
		Policy:              auth.NewPolicy(authConf.AllowedAdmins, logger.Named("auth")),
		Limiter:             limiter,
		KeyFunc:             keyFunc,
		Upstream:            forwarder,
		Audit:               auditLogger,
		Metrics:             prom,
		Logger:              logger,
		InternalAPIKey:      upConf.APIKey,
		MinCredentialLength: authConf.MinCredentialLength,
	})
	if err != nil {
		log.Panicf("failed to create gateway: %s", err)
	}

	server := &http.Server{
		Addr: srvConf.Addr(),
		Handler: gw.Routes(gateway.RouteOptions{
			CorsOrigins: config.SplitList(srvConf.CorsOrigins),
			Metrics:     prom.Handler(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting MCP-API gateway", zap.String("addr", server.Addr), zap.String("version", version))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Panicf("failed to start gateway server: %s", err)
		}
	}()

	healthSrv := startHealthServer(srvConf.GrpcHealthPort)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	s := <-sigc
	logger.Info("shutting down MCP-API gateway", zap.String("signal", s.String()))

	if healthSrv != nil {
		healthSrv.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown gateway server", zap.Error(err))
	}
}
