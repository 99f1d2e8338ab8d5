package config

import "github.com/spf13/pflag"

var (
	flags = pflag.NewFlagSet("config", pflag.ContinueOnError)

	flagConfig      = flags.String("config", "", "Path to config file")
	flagDebug       = flags.Bool("debug", false, "Enable debug logging")
	flagLogFile     = flags.String("log-file", "", "Write logs to this file as well")
	flagLogFormat   = flags.String("log-format", "", "Log encoding: console or json")
	flagAddr        = flags.String("addr", "", "Delivery service listen address")
	flagDeliveryURL = flags.String("delivery-url", "", "Base URL of a running delivery service")
	flagProxy       = flags.Bool("proxy", false, "Route remote URLs through the delivery proxy")
	flagLocalRoots  = flags.StringSlice("local-root", nil, "Directory the local file endpoint may serve (repeatable)")
	flagWidth       = flags.Int("width", 0, "Viewport width")
	flagHeight      = flags.Int("height", 0, "Viewport height")
	flagDPR         = flags.Float64("dpr", 0, "Device pixel ratio")
)

// FlagSet returns the configuration flags for attaching to a command.
func FlagSet() *pflag.FlagSet {
	return flags
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagLogFormat != "" {
		cfg.Logging.Format = *flagLogFormat
	}
	if *flagAddr != "" {
		cfg.Server.Addr = *flagAddr
	}
	if *flagDeliveryURL != "" {
		cfg.Delivery.BaseURL = *flagDeliveryURL
	}
	if *flagProxy {
		cfg.Delivery.UseProxy = true
	}
	if len(*flagLocalRoots) > 0 {
		cfg.Delivery.LocalRoots = append([]string(nil), *flagLocalRoots...)
	}
	if *flagWidth > 0 {
		cfg.Viewer.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Viewer.Height = *flagHeight
	}
	if *flagDPR > 0 {
		cfg.Viewer.DPR = *flagDPR
	}
}
