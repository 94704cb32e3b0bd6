package cmd

import (
	"fmt"

	"github.com/codahale/vrfchain"
	"github.com/codahale/vrfchain/store"
	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	var inspect bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a stored token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := store.ParseID(args[0])
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			t, err := s.Get(id)
			if err != nil {
				return err
			}

			if inspect {
				return printToken(cmd.OutOrStdout(), t)
			}

			text, err := t.MarshalText()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", text)
			return err
		},
	}
	cmd.Flags().BoolVar(&inspect, "inspect", false, "Print the token's links instead of its encoding")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored tokens",
		Long:  `Prints the ID, number of links, and domain of every stored token.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			return s.Iterate(func(id store.ID, t *vrfchain.Token) error {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", id, t.Len(), t.Domain())
				return err
			})
		},
	}
}
