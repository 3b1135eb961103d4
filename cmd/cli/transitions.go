package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	registryv1 "github.com/and161185/car-registry/api/registryv1"
	"github.com/and161185/car-registry/internal/crypto"
	"github.com/and161185/car-registry/internal/crypto/clientcrypto"
	"github.com/and161185/car-registry/internal/model"
	"github.com/and161185/car-registry/internal/registry"
)

type rpcFunc[Req any] func(registryv1.RegistryClient, context.Context, *Req, ...grpc.CallOption) (*registryv1.TransitionResponse, error)

// caller is the signing identity of a transition command.
type caller struct {
	priv ed25519.PrivateKey
	key  model.Pubkey
	cl   registryv1.RegistryClient
}

// userAddr derives the caller's own account address for userName.
func (c caller) userAddr(opts *rootOptions, userName string) (string, error) {
	if userName == "" {
		return "", errors.New("--as is required")
	}
	a, _, err := opts.deriver().User(c.key, userName)
	if err != nil {
		return "", err
	}
	return a.String(), nil
}

// submit signs a proof for method, sends the request built by build and prints the written addresses.
func submit[Req any](cmd *cobra.Command, opts *rootOptions, method string, rpc rpcFunc[Req],
	build func(ctx context.Context, c caller) (*Req, string, error),
) error {
	priv, me, err := opts.loadKey()
	if err != nil {
		return err
	}
	cc, cl, err := opts.dial()
	if err != nil {
		return err
	}
	defer cc.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	req, cosigner, err := build(ctx, caller{priv: priv, key: me, cl: cl})
	if err != nil {
		return err
	}
	ctx, err = authorize(ctx, priv, method, opts.ProofTTL, cosigner)
	if err != nil {
		return err
	}
	resp, err := rpc(cl, ctx, req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), resp)
}

func newTransitionCommands(opts *rootOptions) []*cobra.Command {
	return []*cobra.Command{
		newRegisterUserCommand(opts),
		newVerifyUserCommand(opts),
		newRegisterCarCommand(opts),
		newSetForSaleCommand(opts),
		newCancelSaleCommand(opts),
		newRequestBuyCommand(opts),
		newDecideBuyCommand(opts, "accept-buy", "Accept a purchase request", registryv1.Registry_AcceptBuyRequest_FullMethodName, registryv1.RegistryClient.AcceptBuyRequest),
		newDecideBuyCommand(opts, "reject-buy", "Reject a purchase request", registryv1.Registry_RejectBuyRequest_FullMethodName, registryv1.RegistryClient.RejectBuyRequest),
		newTransferCarCommand(opts),
		newIssueReportCommand(opts),
		newAcceptCommand(opts, "accept-report", "Accept an inspection report onto the car",
			registryv1.Registry_AcceptReport_FullMethodName, registryv1.RegistryClient.AcceptReport,
			func(car, report string) *registryv1.AcceptReportRequest {
				return &registryv1.AcceptReportRequest{Car: car, Report: report}
			}),
		newIssueConformityCommand(opts),
		newAcceptCommand(opts, "accept-conformity", "Accept a conformity report",
			registryv1.Registry_AcceptConformityReport_FullMethodName, registryv1.RegistryClient.AcceptConformityReport,
			func(car, report string) *registryv1.AcceptConformityReportRequest {
				return &registryv1.AcceptConformityReportRequest{Car: car, Report: report}
			}),
	}
}

func newRegisterUserCommand(opts *rootOptions) *cobra.Command {
	var (
		req            registryv1.RegisterUserRequest
		passphraseFile string
		govBoxKey      string
	)
	cmd := &cobra.Command{
		Use:   "register-user <user-name> <role>",
		Short: "Create an account for the caller key",
		Long:  "Roles: Normal, Inspector, ConformityExpert, Government.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd, opts, registryv1.Registry_RegisterUser_FullMethodName, registryv1.RegistryClient.RegisterUser,
				func(_ context.Context, c caller) (*registryv1.RegisterUserRequest, string, error) {
					var err error
					req.UserName, req.Role = args[0], args[1]
					if req.User, err = c.userAddr(opts, req.UserName); err != nil {
						return nil, "", err
					}
					if passphraseFile != "" {
						pass, err := readSecret(passphraseFile)
						if err != nil {
							return nil, "", err
						}
						if req.RecoveryEncryptedKey, err = clientcrypto.WrapRecoveryKey([]byte(strings.TrimSpace(string(pass))), c.priv); err != nil {
							return nil, "", err
						}
					}
					if govBoxKey != "" {
						pub, err := x25519Key(govBoxKey)
						if err != nil {
							return nil, "", fmt.Errorf("government box key: %w", err)
						}
						if req.GovernmentEncryptedKey, err = clientcrypto.SealForGovernment(pub, c.priv); err != nil {
							return nil, "", err
						}
					}
					return &req, "", nil
				})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.PublicDataURI, "public-data-uri", "", "public profile URI")
	f.StringVar(&req.PrivateDataURI, "private-data-uri", "", "private profile URI")
	f.StringVar(&passphraseFile, "passphrase-file", "", "wrap a recovery copy of the key with this passphrase ('-' = stdin)")
	f.StringVar(&govBoxKey, "government-box-key", "", "seal an escrow copy of the key to this government key (base58)")
	return cmd
}

func newVerifyUserCommand(opts *rootOptions) *cobra.Command {
	var (
		as     string
		reject bool
	)
	cmd := &cobra.Command{
		Use:   "verify-user <target-user-address>",
		Short: "Approve or reject a pending account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd, opts, registryv1.Registry_VerifyUser_FullMethodName, registryv1.RegistryClient.VerifyUser,
				func(_ context.Context, c caller) (*registryv1.VerifyUserRequest, string, error) {
					verifier, err := c.userAddr(opts, as)
					if err != nil {
						return nil, "", err
					}
					return &registryv1.VerifyUserRequest{Verifier: verifier, Target: args[0], Approve: !reject}, "", nil
				})
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "caller's government user name")
	cmd.Flags().BoolVar(&reject, "reject", false, "reject instead of approve")
	return cmd
}

func newRegisterCarCommand(opts *rootOptions) *cobra.Command {
	var (
		as  string
		req registryv1.RegisterCarRequest
	)
	cmd := &cobra.Command{
		Use:   "register-car <vin> <owner-key>",
		Short: "Register a car to an owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd, opts, registryv1.Registry_RegisterCar_FullMethodName, registryv1.RegistryClient.RegisterCar,
				func(_ context.Context, c caller) (*registryv1.RegisterCarRequest, string, error) {
					var err error
					req.VIN, req.Owner = args[0], args[1]
					if req.Government, err = c.userAddr(opts, as); err != nil {
						return nil, "", err
					}
					car, _, err := opts.deriver().Car(c.key, req.VIN)
					if err != nil {
						return nil, "", err
					}
					req.Car = car.String()
					return &req, "", nil
				})
		},
	}
	f := cmd.Flags()
	f.StringVar(&as, "as", "", "caller's government user name")
	f.StringVar(&req.CarID, "car-id", "", "registration plate")
	f.StringVar(&req.Brand, "brand", "", "brand")
	f.StringVar(&req.Model, "model", "", "model")
	f.Uint16Var(&req.Year, "year", 0, "model year")
	f.StringVar(&req.Color, "color", "", "color")
	f.StringVar(&req.EngineNumber, "engine-number", "", "engine number")
	f.Uint64Var(&req.Mileage, "mileage", 0, "odometer reading")
	return cmd
}

func newSetForSaleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-for-sale <car> <price>",
		Short: "List a car for sale",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var price uint64
			if _, err := fmt.Sscan(args[1], &price); err != nil {
				return fmt.Errorf("price: %w", err)
			}
			return submit(cmd, opts, registryv1.Registry_SetForSale_FullMethodName, registryv1.RegistryClient.SetForSale,
				func(context.Context, caller) (*registryv1.SetForSaleRequest, string, error) {
					return &registryv1.SetForSaleRequest{Car: args[0], Price: price}, "", nil
				})
		},
	}
}

func newCancelSaleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-sale <car>",
		Short: "Withdraw a car from sale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd, opts, registryv1.Registry_CancelForSale_FullMethodName, registryv1.RegistryClient.CancelForSale,
				func(context.Context, caller) (*registryv1.CancelForSaleRequest, string, error) {
					return &registryv1.CancelForSaleRequest{Car: args[0]}, "", nil
				})
		},
	}
}

// buyRequestOf derives the request address of buyer for the car at carAddr.
func buyRequestOf(ctx context.Context, opts *rootOptions, c caller, carAddr string, buyer model.Pubkey) (string, error) {
	addr, err := model.ParseAddress(carAddr)
	if err != nil {
		return "", err
	}
	car, err := fetchCar(ctx, opts, c.cl, addr)
	if err != nil {
		return "", err
	}
	br, _, err := opts.deriver().BuyRequest(car.VIN, buyer)
	if err != nil {
		return "", err
	}
	return br.String(), nil
}

func newRequestBuyCommand(opts *rootOptions) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "request-buy <car>",
		Short: "Ask the owner to sell a listed car",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd, opts, registryv1.Registry_RequestBuy_FullMethodName, registryv1.RegistryClient.RequestBuy,
				func(ctx context.Context, c caller) (*registryv1.RequestBuyRequest, string, error) {
					br, err := buyRequestOf(ctx, opts, c, args[0], c.key)
					if err != nil {
						return nil, "", err
					}
					req := &registryv1.RequestBuyRequest{Car: args[0], BuyRequest: br}
					if cmd.Flags().Changed("message") {
						req.Message = &message
					}
					return req, "", nil
				})
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "note to the owner")
	return cmd
}

func newDecideBuyCommand(opts *rootOptions, use, short, method string, rpc rpcFunc[registryv1.DecideBuyRequest]) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <car> <buyer-key>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			buyer, err := model.ParsePubkey(args[1])
			if err != nil {
				return err
			}
			return submit(cmd, opts, method, rpc,
				func(ctx context.Context, c caller) (*registryv1.DecideBuyRequest, string, error) {
					br, err := buyRequestOf(ctx, opts, c, args[0], buyer)
					if err != nil {
						return nil, "", err
					}
					return &registryv1.DecideBuyRequest{Car: args[0], BuyRequest: br}, "", nil
				})
		},
	}
}

func newTransferCarCommand(opts *rootOptions) *cobra.Command {
	var (
		userName      string
		cosignerKey   string
		cosignerProof string
		withRequest   bool
	)
	cmd := &cobra.Command{
		Use:   "transfer-car <car> <new-owner-key>",
		Short: "Hand a car over to a new owner",
		Long: `The new owner co-signs the transfer, either with --cosigner-key or by
handing over a token from 'vrctl proof TransferCar --transfer-car <car>'.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			car, err := model.ParseAddress(args[0])
			if err != nil {
				return err
			}
			newOwner, err := model.ParsePubkey(args[1])
			if err != nil {
				return err
			}
			return submit(cmd, opts, registryv1.Registry_TransferCar_FullMethodName, registryv1.RegistryClient.TransferCar,
				func(ctx context.Context, c caller) (*registryv1.TransferCarRequest, string, error) {
					user, _, err := opts.deriver().User(newOwner, userName)
					if err != nil {
						return nil, "", err
					}
					req := &registryv1.TransferCarRequest{
						Car:              args[0],
						NewOwner:         newOwner.String(),
						NewOwnerUser:     user.String(),
						NewOwnerUserName: userName,
					}
					if withRequest {
						br, err := buyRequestOf(ctx, opts, c, args[0], newOwner)
						if err != nil {
							return nil, "", err
						}
						req.BuyRequest = &br
					}
					proof, err := cosign(cosignerKey, cosignerProof, car, newOwner, opts.ProofTTL)
					if err != nil {
						return nil, "", err
					}
					return req, proof, nil
				})
		},
	}
	f := cmd.Flags()
	f.StringVar(&userName, "new-owner-user-name", "", "new owner's account name")
	f.StringVar(&cosignerKey, "cosigner-key", "", "new owner's key file")
	f.StringVar(&cosignerProof, "cosigner-proof", "", "new owner's TransferCar proof")
	f.BoolVar(&withRequest, "with-buy-request", false, "complete the new owner's accepted buy request")
	_ = cmd.MarkFlagRequired("new-owner-user-name")
	cmd.MarkFlagsMutuallyExclusive("cosigner-key", "cosigner-proof")
	return cmd
}

// cosign returns the new owner's co-signature, either handed over as a token or
// signed here from their key file and narrowed to this transfer.
func cosign(keyPath, proof string, car model.Address, newOwner model.Pubkey, ttl time.Duration) (string, error) {
	if proof != "" || keyPath == "" {
		return proof, nil
	}
	priv, err := crypto.LoadKey(keyPath)
	if err != nil {
		return "", fmt.Errorf("cosigner key: %w", err)
	}
	if model.PubkeyFromEd25519(priv.Public().(ed25519.PublicKey)) != newOwner {
		return "", errors.New("cosigner key does not belong to the new owner")
	}
	return crypto.SignScopedProof(priv, registryv1.Registry_TransferCar_FullMethodName,
		registry.TransferScope(car, newOwner), ttl, time.Now())
}

func newIssueReportCommand(opts *rootOptions) *cobra.Command {
	var (
		as  string
		req registryv1.IssueCarReportRequest
	)
	cmd := &cobra.Command{
		Use:   "issue-report <car> <report-id>",
		Short: "File an inspection report",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			car, err := model.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return submit(cmd, opts, registryv1.Registry_IssueCarReport_FullMethodName, registryv1.RegistryClient.IssueCarReport,
				func(_ context.Context, c caller) (*registryv1.IssueCarReportRequest, string, error) {
					var err error
					if req.Inspector, err = c.userAddr(opts, as); err != nil {
						return nil, "", err
					}
					rep, _, err := opts.deriver().CarReport(car, c.key, args[1])
					if err != nil {
						return nil, "", err
					}
					req.Car, req.ReportID, req.Report = args[0], args[1], rep.String()
					return &req, "", nil
				})
		},
	}
	f := cmd.Flags()
	f.StringVar(&as, "as", "", "caller's inspector user name")
	f.Uint8Var(&req.OverallCondition, "overall", 0, "overall condition 0-100")
	f.Uint8Var(&req.EngineCondition, "engine", 0, "engine condition 0-100")
	f.Uint8Var(&req.BodyCondition, "body", 0, "body condition 0-100")
	f.StringVar(&req.FullReportURI, "uri", "", "full report URI")
	f.StringVar(&req.ReportSummary, "summary", "", "summary")
	f.StringVar(&req.Notes, "notes", "", "notes")
	return cmd
}

func newIssueConformityCommand(opts *rootOptions) *cobra.Command {
	var (
		as  string
		req registryv1.IssueConformityReportRequest
	)
	cmd := &cobra.Command{
		Use:   "issue-conformity <car> <report-id> <status>",
		Short: "File a conformity report",
		Long:  "Status: Pass, Fail.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			car, err := model.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return submit(cmd, opts, registryv1.Registry_IssueConformityReport_FullMethodName, registryv1.RegistryClient.IssueConformityReport,
				func(_ context.Context, c caller) (*registryv1.IssueConformityReportRequest, string, error) {
					var err error
					if req.Expert, err = c.userAddr(opts, as); err != nil {
						return nil, "", err
					}
					rep, _, err := opts.deriver().ConformityReport(car, c.key, args[1])
					if err != nil {
						return nil, "", err
					}
					req.Car, req.ReportID, req.ConformityStatus, req.Report = args[0], args[1], args[2], rep.String()
					return &req, "", nil
				})
		},
	}
	f := cmd.Flags()
	f.StringVar(&as, "as", "", "caller's conformity expert user name")
	f.StringVar(&req.Modifications, "modifications", "", "declared modifications")
	f.StringVar(&req.MinesStamp, "mines-stamp", "", "certification stamp")
	f.StringVar(&req.FullReportURI, "uri", "", "full report URI")
	f.StringVar(&req.Notes, "notes", "", "notes")
	return cmd
}

// newAcceptCommand builds accept-report and accept-conformity, which share a request shape.
func newAcceptCommand[Req any](opts *rootOptions, use, short, method string, rpc rpcFunc[Req], build func(car, report string) *Req) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <car> <report>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd, opts, method, rpc,
				func(context.Context, caller) (*Req, string, error) {
					return build(args[0], args[1]), "", nil
				})
		},
	}
}
