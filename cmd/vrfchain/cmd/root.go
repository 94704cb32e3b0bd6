// Package cmd implements the vrfchain command line tool.
package cmd

import (
	"io"
	"strings"

	"github.com/codahale/vrfchain"
	"github.com/codahale/vrfchain/internal/logging"
	"github.com/codahale/vrfchain/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app holds the state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	logger  *zap.Logger
}

// NewRootCmd returns the vrfchain command with all of its subcommands.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "vrfchain",
		Short: "Create and verify appendable VRF signature chains",
		Long: `vrfchain manages tokens: ordered chains of messages, each endorsed by a
key holder, with a single constant-size aggregate signature over the
whole chain. Anyone holding a token can append a link with their own key.

Tokens are printed and read as base58 text. A token argument of "-" is
read from standard input.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			_ = a.logger.Sync()
		},
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.vrfchain.yaml)")
	flags.String("domain", "vrfchain", "Domain string separating this application's tokens")
	flags.String("store", "vrfchain.db", "Path to the token store")
	flags.String("passphrase", "", "Passphrase sealing key files")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.Int("cache-size", 1024, "Number of link points cached while verifying stored tokens")
	_ = a.v.BindPFlags(flags)

	root.AddCommand(
		newKeygenCmd(a),
		newPubkeyCmd(a),
		newCreateCmd(a),
		newAppendCmd(a),
		newVerifyCmd(a),
		newInspectCmd(a),
		newGetCmd(a),
		newListCmd(a),
	)
	return root
}

// init reads in the config file and environment variables and builds the logger.
func (a *app) init() error {
	a.v.SetEnvPrefix("vrfchain")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config file %s", a.cfgFile)
		}
	} else {
		a.v.SetConfigName(".vrfchain")
		a.v.AddConfigPath("$HOME")
		_ = a.v.ReadInConfig()
	}

	logger, err := logging.New("vrfchain", a.v.GetString("log-level"))
	if err != nil {
		return err
	}
	a.logger = logger

	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("using config file", zap.String("path", used))
	}
	return nil
}

func (a *app) domain() string {
	return a.v.GetString("domain")
}

func (a *app) passphrase() []byte {
	return []byte(a.v.GetString("passphrase"))
}

func (a *app) openStore() (*store.Store, error) {
	path := a.v.GetString("store")
	a.logger.Debug("opening token store", zap.String("path", path))
	return store.Open(path,
		store.WithLogger(a.logger),
		store.WithCacheSize(a.v.GetInt("cache-size")),
		store.WithDomain(a.domain()),
	)
}

// readToken decodes a base58 token argument, reading it from in if it is "-".
func readToken(in io.Reader, arg string) (*vrfchain.Token, error) {
	if arg == "-" {
		b, err := io.ReadAll(in)
		if err != nil {
			return nil, errors.Wrap(err, "read token")
		}
		arg = string(b)
	}

	var t vrfchain.Token
	if err := t.UnmarshalText([]byte(strings.TrimSpace(arg))); err != nil {
		return nil, errors.Wrap(err, "decode token")
	}
	return &t, nil
}
