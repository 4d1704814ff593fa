// Package config loads graphopt settings from defaults, an optional config
// file, GRAPHOPT_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/born-ml/graphopt/internal/optimizer"
	"github.com/born-ml/graphopt/internal/quant"
	"github.com/born-ml/graphopt/internal/tensor"
)

// EnvPrefix prefixes every environment variable, e.g. GRAPHOPT_LOG_LEVEL.
const EnvPrefix = "GRAPHOPT"

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Quant     QuantConfig     `mapstructure:"quant"`
	Server    ServerConfig    `mapstructure:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type OptimizerConfig struct {
	Passes     []string `mapstructure:"passes"`
	LayoutFrom string   `mapstructure:"layout_from"`
	LayoutTo   string   `mapstructure:"layout_to"`
	Validate   bool     `mapstructure:"validate"`
}

type QuantConfig struct {
	QuantMin     int     `mapstructure:"quant_min"`
	QuantMax     int     `mapstructure:"quant_max"`
	EVQuant      bool    `mapstructure:"ev_quant"`
	TensorType   string  `mapstructure:"tensor_type"`
	WeightsScale float32 `mapstructure:"weights_scale"`
	InputsScale  float32 `mapstructure:"inputs_scale"`
}

type ServerConfig struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	p := quant.DefaultParams()
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "pretty",
		},
		Optimizer: OptimizerConfig{
			Passes:     []string{optimizer.NameRemoveReshape, optimizer.NameFuseRelu},
			LayoutFrom: tensor.NCHW.String(),
			LayoutTo:   tensor.NCHW.String(),
			Validate:   true,
		},
		Quant: QuantConfig{
			QuantMin:     p.QuantMin,
			QuantMax:     p.QuantMax,
			EVQuant:      p.EVQuant,
			TensorType:   p.TensorType.String(),
			WeightsScale: p.WeightsScale,
			InputsScale:  p.InputsScale,
		},
		Server: ServerConfig{
			ListenAddr:   ":8080",
			MaxBodyBytes: 64 << 20,
		},
	}
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"log-level":             "log.level",
	"log-format":            "log.format",
	"passes":                "optimizer.passes",
	"layout-from":           "optimizer.layout_from",
	"layout-to":             "optimizer.layout_to",
	"validate":              "optimizer.validate",
	"quant-min":             "quant.quant_min",
	"quant-max":             "quant.quant_max",
	"ev-quant":              "quant.ev_quant",
	"tensor-type":           "quant.tensor_type",
	"weights-scale":         "quant.weights_scale",
	"inputs-scale":          "quant.inputs_scale",
	"server-listen-addr":    "server.listen_addr",
	"server-max-body-bytes": "server.max_body_bytes",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.Log.Level, "Log level (debug|info|warn|error)")
	fs.String("log-format", defaults.Log.Format, "Log format (pretty|text|json)")
	fs.StringSlice("passes", defaults.Optimizer.Passes, "Optimizer pipeline, in order")
	fs.String("layout-from", defaults.Optimizer.LayoutFrom, "Layout of the input graph (NCHW|NHWC)")
	fs.String("layout-to", defaults.Optimizer.LayoutTo, "Layout produced by convert_layout (NCHW|NHWC)")
	fs.Bool("validate", defaults.Optimizer.Validate, "Validate the graph after every pass")
	fs.Int("quant-min", defaults.Quant.QuantMin, "Lowest integer code")
	fs.Int("quant-max", defaults.Quant.QuantMax, "Highest integer code")
	fs.Bool("ev-quant", defaults.Quant.EVQuant, "Use the EV scale rule")
	fs.String("tensor-type", defaults.Quant.TensorType, "EV tensor role (weight|activation|layer)")
	fs.Float32("weights-scale", defaults.Quant.WeightsScale, "EV activation rule weight scale")
	fs.Float32("inputs-scale", defaults.Quant.InputsScale, "EV activation rule input scale")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int64("server-max-body-bytes", defaults.Server.MaxBodyBytes, "Largest accepted request body")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("graphopt")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// bindFlags binds each known flag directly to its nested key. Aliasing the
// nested key to the flag name instead would hide config file values.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		f := fs.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
	v.SetDefault("optimizer.passes", c.Optimizer.Passes)
	v.SetDefault("optimizer.layout_from", c.Optimizer.LayoutFrom)
	v.SetDefault("optimizer.layout_to", c.Optimizer.LayoutTo)
	v.SetDefault("optimizer.validate", c.Optimizer.Validate)
	v.SetDefault("quant.quant_min", c.Quant.QuantMin)
	v.SetDefault("quant.quant_max", c.Quant.QuantMax)
	v.SetDefault("quant.ev_quant", c.Quant.EVQuant)
	v.SetDefault("quant.tensor_type", c.Quant.TensorType)
	v.SetDefault("quant.weights_scale", c.Quant.WeightsScale)
	v.SetDefault("quant.inputs_scale", c.Quant.InputsScale)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.max_body_bytes", c.Server.MaxBodyBytes)
}

// QuantParams converts the quant section.
func (c QuantConfig) QuantParams() (quant.Params, error) {
	tt, err := quant.ParseTensorType(strings.ToLower(strings.TrimSpace(c.TensorType)))
	if err != nil {
		return quant.Params{}, err
	}
	return quant.Params{
		QuantMin:     c.QuantMin,
		QuantMax:     c.QuantMax,
		TensorType:   tt,
		EVQuant:      c.EVQuant,
		WeightsScale: c.WeightsScale,
		InputsScale:  c.InputsScale,
	}, nil
}

// OptimizerOptions builds registry options from the optimizer and quant
// sections.
func (c Config) OptimizerOptions() (optimizer.Options, error) {
	opts := optimizer.DefaultOptions()
	var err error
	if opts.LayoutFrom, err = tensor.ParseLayout(c.Optimizer.LayoutFrom); err != nil {
		return opts, fmt.Errorf("optimizer.layout_from: %w", err)
	}
	if opts.LayoutTo, err = tensor.ParseLayout(c.Optimizer.LayoutTo); err != nil {
		return opts, fmt.Errorf("optimizer.layout_to: %w", err)
	}
	if opts.Quant, err = c.Quant.QuantParams(); err != nil {
		return opts, fmt.Errorf("quant: %w", err)
	}
	return opts, nil
}
