package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/codahale/vrfchain"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCreateCmd(a *app) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "create <key-file> <message>",
		Short: "Create a single-link token",
		Long: `Creates a token in which the key file's key pair endorses the message,
and prints it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := a.readKey(args[0])
			if err != nil {
				return err
			}

			t := vrfchain.New(a.domain(), kp, []byte(args[1]))
			a.logger.Info("created token", zap.String("domain", t.Domain()))
			return a.output(cmd, t, save)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Also put the token in the store")
	return cmd
}

func newAppendCmd(a *app) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "append <key-file> <token> <message>",
		Short: "Append a link to a token",
		Long: `Verifies the token under the configured domain, appends a link in which
the key file's key pair endorses the message, and prints the extended token.
The original token remains valid.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := a.readKey(args[0])
			if err != nil {
				return err
			}

			t, err := readToken(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}

			if t.Domain() != a.domain() {
				return errors.Wrapf(vrfchain.ErrInvalidToken, "token domain %q is not %q", t.Domain(), a.domain())
			}

			t, err = t.Append(kp, []byte(args[2]))
			if err != nil {
				return errors.Wrap(err, "append to token")
			}
			a.logger.Info("appended to token", zap.String("domain", t.Domain()), zap.Int("links", t.Len()))
			return a.output(cmd, t, save)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Also put the token in the store")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a token",
		Long: `Verifies that the token was created under the configured domain and that
every link was endorsed, in order, by the holder of its key. Exits non-zero
if it was not.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readToken(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			if err := t.CheckDomain(a.domain()); err != nil {
				a.logger.Warn("token failed verification", zap.Error(err))
				return errors.Wrap(err, "verify token")
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "valid (%s, %d links)\n", t.Domain(), t.Len())
			return err
		},
	}
}

func newInspectCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token>",
		Short: "Print the links of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readToken(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return printToken(cmd.OutOrStdout(), t)
		},
	}
}

// output prints the token and, if save is set, puts it in the store.
func (a *app) output(cmd *cobra.Command, t *vrfchain.Token, save bool) error {
	text, err := t.MarshalText()
	if err != nil {
		return errors.Wrap(err, "encode token")
	}

	if save {
		s, err := a.openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		id, err := s.Put(t)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "stored", id)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", text)
	return err
}

func printToken(w io.Writer, t *vrfchain.Token) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	_, _ = fmt.Fprintf(tw, "domain:\t%q\n", t.Domain())
	_, _ = fmt.Fprintf(tw, "links:\t%d\n", t.Len())
	_, _ = fmt.Fprintf(tw, "valid:\t%t\n", t.Verify())

	keys := t.Keys()
	for i, m := range t.Messages() {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%q\n", i, base58.Encode(keys[i].Bytes()), m)
	}
	return tw.Flush()
}
