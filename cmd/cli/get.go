package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	registryv1 "github.com/and161185/car-registry/api/registryv1"
	"github.com/and161185/car-registry/internal/convert"
	"github.com/and161185/car-registry/internal/model"
)

func newGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <address>",
		Short: "Print a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := model.ParseAddress(args[0])
			if err != nil {
				return err
			}
			cc, cl, err := opts.dial()
			if err != nil {
				return err
			}
			defer cc.Close()
			rec, err := fetchRecord(cmd.Context(), opts, cl, addr)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"address": addr.String(),
				"kind":    rec.Kind(),
				"record":  rec,
			})
		},
	}
}

func fetchRecord(ctx context.Context, opts *rootOptions, cl registryv1.RegistryClient, addr model.Address) (model.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	resp, err := cl.GetRecord(ctx, &registryv1.GetRecordRequest{Address: addr.String()})
	if err != nil {
		return nil, err
	}
	return convert.FromGetRecordResponse(resp)
}

func fetchCar(ctx context.Context, opts *rootOptions, cl registryv1.RegistryClient, addr model.Address) (*model.Car, error) {
	rec, err := fetchRecord(ctx, opts, cl, addr)
	if err != nil {
		return nil, err
	}
	car, ok := rec.(*model.Car)
	if !ok {
		return nil, fmt.Errorf("%s is a %s, not a Car", addr, rec.Kind())
	}
	return car, nil
}
