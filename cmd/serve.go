/*
Copyright © 2019 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jensneuse/abstractlogger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wundergraph/graphql-http-ws-server/internal/demo"
	pkghttp "github.com/wundergraph/graphql-http-ws-server/pkg/http"
	"github.com/wundergraph/graphql-http-ws-server/pkg/server"
)

type serveOptions struct {
	Host                  string
	Port                  int
	GraphQLPath           string
	SubscriptionsPath     string
	Playground            bool
	CSRFPrevention        bool
	KeepAlive             time.Duration
	ConnectionInitTimeout time.Duration
	QueryCacheSize        int
	UnmatchedUpgrades     pkghttp.UnmatchedUpgradePolicy
	MetricsPath           string
	LogLevel              string
	DrainTimeout          time.Duration
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "starts the GraphQL server with an in-memory chat schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		options, err := loadServeOptions(viper.GetViper())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, options)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("host", "", "host to listen on")
	flags.Int("port", server.DefaultPort, "port to listen on")
	flags.String("graphql-path", server.DefaultGraphQLPath, "path of the GraphQL endpoint")
	flags.String("subscriptions-path", server.DefaultSubscriptionsPath, "path of the websocket endpoint")
	flags.Bool("playground", false, "serve GraphQL Playground on GET requests to the GraphQL endpoint")
	flags.Bool("csrf-prevention", true, "reject GET and simple POST requests without a preflight header")
	flags.Duration("keep-alive", 0, "graphql-ws keep alive interval, negative disables it")
	flags.Duration("connection-init-timeout", 0, "graphql-transport-ws connection_init timeout")
	flags.Int("query-cache-size", 0, "amount of parsed documents kept in memory")
	flags.String("unmatched-upgrades", "pass-through", "upgrades of other paths: pass-through or destroy")
	flags.String("metrics-path", "/metrics", "path of the prometheus metrics, empty disables them")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.Duration("drain-timeout", 10*time.Second, "maximum duration of a graceful shutdown")
	_ = viper.BindPFlags(flags)
}

func loadServeOptions(v *viper.Viper) (serveOptions, error) {
	unmatchedUpgrades, err := parseUnmatchedUpgrades(v.GetString("unmatched-upgrades"))
	if err != nil {
		return serveOptions{}, err
	}

	return serveOptions{
		Host:                  v.GetString("host"),
		Port:                  v.GetInt("port"),
		GraphQLPath:           v.GetString("graphql-path"),
		SubscriptionsPath:     v.GetString("subscriptions-path"),
		Playground:            v.GetBool("playground"),
		CSRFPrevention:        v.GetBool("csrf-prevention"),
		KeepAlive:             v.GetDuration("keep-alive"),
		ConnectionInitTimeout: v.GetDuration("connection-init-timeout"),
		QueryCacheSize:        v.GetInt("query-cache-size"),
		UnmatchedUpgrades:     unmatchedUpgrades,
		MetricsPath:           v.GetString("metrics-path"),
		LogLevel:              v.GetString("log-level"),
		DrainTimeout:          v.GetDuration("drain-timeout"),
	}, nil
}

func parseUnmatchedUpgrades(value string) (pkghttp.UnmatchedUpgradePolicy, error) {
	switch value {
	case "", "pass-through":
		return pkghttp.UnmatchedUpgradePassThrough, nil
	case "destroy":
		return pkghttp.UnmatchedUpgradeDestroy, nil
	default:
		return 0, fmt.Errorf("unknown unmatched-upgrades policy %q", value)
	}
}

func newLogger(level string) (*zap.Logger, abstractlogger.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	zapLogger, err := config.Build()
	if err != nil {
		return nil, nil, err
	}

	// the zap core does the filtering
	return zapLogger, abstractlogger.NewZapLogger(zapLogger, abstractlogger.DebugLevel), nil
}

func newServerConfig(options serveOptions, logger abstractlogger.Logger, registry *prometheus.Registry, chat *demo.Chat) server.Config {
	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	if options.MetricsPath != "" {
		router.Handle(options.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return server.Config{
		Source:                server.OwnedServer{Host: options.Host, Port: options.Port},
		Router:                router,
		GraphQLPath:           options.GraphQLPath,
		SubscriptionsPath:     options.SubscriptionsPath,
		TypeDefs:              demo.TypeDefs,
		Resolvers:             chat.Resolvers(),
		Logger:                logger,
		KeepAlive:             options.KeepAlive,
		Playground:            options.Playground,
		CSRFPrevention:        &options.CSRFPrevention,
		QueryCacheSize:        options.QueryCacheSize,
		UnmatchedUpgrades:     options.UnmatchedUpgrades,
		MetricsRegisterer:     registry,
		ConnectionInitTimeout: options.ConnectionInitTimeout,
	}
}

func serve(ctx context.Context, options serveOptions) error {
	zapLogger, logger, err := newLogger(options.LogLevel)
	if err != nil {
		return err
	}
	defer zapLogger.Sync() // nolint

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	config := newServerConfig(options, logger, registry, demo.NewChat())
	config.Plugins = append(config.Plugins, server.PluginFuncs{
		Drain: func(ctx context.Context) error {
			logger.Info("graphql server drained")
			return nil
		},
	})

	s, err := server.New(config)
	if err != nil {
		return err
	}
	if err = s.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down graphql server", abstractlogger.String("timeout", options.DrainTimeout.String()))

	drainCtx, cancel := context.WithTimeout(context.Background(), options.DrainTimeout)
	defer cancel()
	return s.Shutdown(drainCtx)
}
