package main

import (
	"context"
	"flag"
	"io"
	"io/fs"
	"os"

	"github.com/diwise/activitystreams/internal/pkg/application/objectstore"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
)

type FlagType int
type FlagMap map[FlagType]string

const (
	listenAddress FlagType = iota
	servicePort

	configPath
	opaPath
	assetsPath

	remoteContexts

	logFormat
)

type AppConfig struct {
	storeConfig *objectstore.Config
	opaConfig   io.ReadCloser
	assets      fs.FS
}

func defaultFlags() FlagMap {
	return FlagMap{
		listenAddress: "",
		servicePort:   "8080",

		configPath: "/opt/diwise/config/activitystreams.yaml",
		opaPath:    "/opt/diwise/config/authz.rego",
		assetsPath: "/opt/diwise/config",

		remoteContexts: "false",

		logFormat: "json",
	}
}

// parseExternalConfig lets environment variables override the defaults and
// command line flags override both
func parseExternalConfig(ctx context.Context, flags FlagMap) (context.Context, FlagMap) {
	flags[servicePort] = env.GetVariableOrDefault(ctx, "SERVICE_PORT", flags[servicePort])
	flags[configPath] = env.GetVariableOrDefault(ctx, "ACTIVITYSTREAMS_CONFIG_PATH", flags[configPath])
	flags[opaPath] = env.GetVariableOrDefault(ctx, "OPA_POLICY_PATH", flags[opaPath])
	flags[assetsPath] = env.GetVariableOrDefault(ctx, "ACTIVITYSTREAMS_ASSETS_PATH", flags[assetsPath])
	flags[remoteContexts] = env.GetVariableOrDefault(ctx, "ACTIVITYSTREAMS_REMOTE_CONTEXTS", flags[remoteContexts])
	flags[logFormat] = env.GetVariableOrDefault(ctx, "LOG_FORMAT", flags[logFormat])

	apply := func(f FlagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	flag.Func("port", "the port to listen for incoming connections on", apply(servicePort))
	flag.Func("config", "path to the service configuration file", apply(configPath))
	flag.Func("policies", "path to the authorization policies", apply(opaPath))
	flag.Func("assets", "directory that vocabulary and context paths are relative to", apply(assetsPath))
	flag.Parse()

	return ctx, flags
}

func loadAppConfig(flags FlagMap) (*AppConfig, error) {
	cfgFile, err := os.Open(flags[configPath])
	if err != nil {
		return nil, err
	}
	defer cfgFile.Close()

	storeConfig, err := objectstore.LoadConfiguration(cfgFile)
	if err != nil {
		return nil, err
	}

	policies, err := os.Open(flags[opaPath])
	if err != nil {
		return nil, err
	}

	return &AppConfig{
		storeConfig: storeConfig,
		opaConfig:   policies,
		assets:      os.DirFS(flags[assetsPath]),
	}, nil
}
