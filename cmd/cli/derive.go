package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/and161185/car-registry/internal/model"
)

// newDeriveCommand computes record addresses locally; it never contacts the server.
func newDeriveCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive record addresses",
	}
	printAddr := func(cmd *cobra.Command, a model.Address, bump uint8, err error) error {
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"address": a.String(), "bump": bump})
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "user <authority> <user-name>",
			Short: "Address of a user account",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				auth, err := model.ParsePubkey(args[0])
				if err != nil {
					return err
				}
				a, b, err := opts.deriver().User(auth, args[1])
				return printAddr(cmd, a, b, err)
			},
		},
		&cobra.Command{
			Use:   "car <government> <vin>",
			Short: "Address of a car",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				gov, err := model.ParsePubkey(args[0])
				if err != nil {
					return err
				}
				a, b, err := opts.deriver().Car(gov, args[1])
				return printAddr(cmd, a, b, err)
			},
		},
		&cobra.Command{
			Use:   "buy-request <vin> <buyer>",
			Short: "Address of a buyer's purchase request",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				buyer, err := model.ParsePubkey(args[1])
				if err != nil {
					return err
				}
				a, b, err := opts.deriver().BuyRequest(args[0], buyer)
				return printAddr(cmd, a, b, err)
			},
		},
		reportDeriveCommand("car-report", "Address of an inspection report", opts, printAddr, false),
		reportDeriveCommand("conformity-report", "Address of a conformity report", opts, printAddr, true),
	)
	return cmd
}

func reportDeriveCommand(use, short string, opts *rootOptions,
	printAddr func(*cobra.Command, model.Address, uint8, error) error, conformity bool,
) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s <car> <issuer> <report-id>", use),
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			car, err := model.ParseAddress(args[0])
			if err != nil {
				return err
			}
			issuer, err := model.ParsePubkey(args[1])
			if err != nil {
				return err
			}
			d := opts.deriver()
			if conformity {
				a, b, err := d.ConformityReport(car, issuer, args[2])
				return printAddr(cmd, a, b, err)
			}
			a, b, err := d.CarReport(car, issuer, args[2])
			return printAddr(cmd, a, b, err)
		},
	}
}
