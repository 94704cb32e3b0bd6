package cmd

import (
	"fmt"

	"github.com/codahale/vrfchain"
	"github.com/codahale/vrfchain/keyfile"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newKeygenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen <key-file>",
		Short: "Generate a key pair",
		Long: `Generates a new key pair, writes it to a new key file, and prints the
public key. If a passphrase is configured, the private key is sealed with it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := vrfchain.GenerateKey(nil)
			if err != nil {
				return err
			}

			if err := keyfile.Write(args[0], kp, a.passphrase()); err != nil {
				return errors.Wrapf(err, "write key file %s", args[0])
			}
			a.logger.Info("generated key pair", zap.String("path", args[0]), zap.Bool("sealed", len(a.passphrase()) > 0))

			_, err = fmt.Fprintln(cmd.OutOrStdout(), base58.Encode(kp.PublicKey().Bytes()))
			return err
		},
	}
}

func newPubkeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey <key-file>",
		Short: "Print the public key of a key file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := a.readKey(args[0])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), base58.Encode(kp.PublicKey().Bytes()))
			return err
		},
	}
}

func (a *app) readKey(path string) (*vrfchain.KeyPair, error) {
	kp, err := keyfile.Read(path, a.passphrase())
	if err != nil {
		return nil, errors.Wrapf(err, "read key file %s", path)
	}
	return kp, nil
}
