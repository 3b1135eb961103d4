package main

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	registryv1 "github.com/and161185/car-registry/api/registryv1"
	"github.com/and161185/car-registry/internal/crypto"
	"github.com/and161185/car-registry/internal/crypto/clientcrypto"
	"github.com/and161185/car-registry/internal/model"
	"github.com/and161185/car-registry/internal/registry"
)

func newKeygenCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Create a caller key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			if err := crypto.SaveKey(opts.KeyPath, priv); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), model.PubkeyFromEd25519(priv.Public().(ed25519.PublicKey)))
			return nil
		},
	}
}

func newWhoamiCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the caller public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, pub, err := opts.loadKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pub)
			return nil
		},
	}
}

// newProofCommand prints a proof for another party to submit, e.g. the new owner's
// co-signature on TransferCar, which --transfer-car narrows to one car.
func newProofCommand(opts *rootOptions) *cobra.Command {
	var transferCar string
	cmd := &cobra.Command{
		Use:   "proof <Method>",
		Short: "Sign an authorization proof for a registry method",
		Example: `  vrctl proof TransferCar --transfer-car <car> --proof-ttl 5m
  vrctl transfer-car ... --cosigner-proof <token>`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, me, err := opts.loadKey()
			if err != nil {
				return err
			}
			method := args[0]
			if !strings.HasPrefix(method, "/") {
				method = "/" + registryv1.ServiceName + "/" + method
			}
			var scope string
			if transferCar != "" {
				car, err := model.ParseAddress(transferCar)
				if err != nil {
					return err
				}
				scope = registry.TransferScope(car, me)
			}
			tok, err := crypto.SignScopedProof(priv, method, scope, opts.ProofTTL, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&transferCar, "transfer-car", "", "narrow the proof to taking over this car")
	return cmd
}

func newGovKeygenCommand(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gov-keygen",
		Short: "Create a government escrow key pair for encrypted key recovery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := clientcrypto.GenerateGovernmentKey()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"publicKey":  base58.Encode(pub[:]),
				"privateKey": base58.Encode(priv[:]),
			})
		},
	}
}

type recoverOptions struct {
	user           string
	passphraseFile string
	govPublic      string
	govPrivateFile string
	out            string
}

// newRecoverKeyCommand restores a caller key from the encrypted blobs on its user record.
func newRecoverKeyCommand(opts *rootOptions) *cobra.Command {
	ro := &recoverOptions{}
	cmd := &cobra.Command{
		Use:   "recover-key",
		Short: "Restore a caller key from its user record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := model.ParseAddress(ro.user)
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
			user, ok := rec.(*model.User)
			if !ok {
				return fmt.Errorf("%s is a %s, not a User", addr, rec.Kind())
			}

			var priv ed25519.PrivateKey
			switch {
			case ro.passphraseFile != "":
				pass, err := readSecret(ro.passphraseFile)
				if err != nil {
					return err
				}
				priv, err = clientcrypto.UnwrapRecoveryKey([]byte(strings.TrimSpace(string(pass))), user.Authority, user.RecoveryEncryptedKey)
				if err != nil {
					return err
				}
			case ro.govPrivateFile != "":
				pub, err := x25519Key(ro.govPublic)
				if err != nil {
					return fmt.Errorf("government public key: %w", err)
				}
				raw, err := readSecret(ro.govPrivateFile)
				if err != nil {
					return err
				}
				sec, err := x25519Key(strings.TrimSpace(string(raw)))
				if err != nil {
					return fmt.Errorf("government private key: %w", err)
				}
				priv, err = clientcrypto.OpenAsGovernment(pub, sec, user.Authority, user.GovernmentEncryptedKey)
				if err != nil {
					return err
				}
			default:
				return errors.New("need --passphrase-file or --government-private-file")
			}

			if err := crypto.SaveKey(ro.out, priv); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), user.Authority)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&ro.user, "user", "", "user record address")
	f.StringVar(&ro.passphraseFile, "passphrase-file", "", "file holding the recovery passphrase ('-' = stdin)")
	f.StringVar(&ro.govPublic, "government-public", "", "government escrow public key (base58)")
	f.StringVar(&ro.govPrivateFile, "government-private-file", "", "file holding the government escrow private key")
	f.StringVar(&ro.out, "out", "", "where to write the recovered key")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func x25519Key(s string) (*[32]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("want 32 bytes, got %d", len(raw))
	}
	var k [32]byte
	copy(k[:], raw)
	return &k, nil
}
