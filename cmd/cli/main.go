// Command vrctl is a CLI client for the vehicle registry service.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	registryv1 "github.com/and161185/car-registry/api/registryv1"
	"github.com/and161185/car-registry/internal/address"
	"github.com/and161185/car-registry/internal/crypto"
	"github.com/and161185/car-registry/internal/model"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// ---- config dir ----

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "vrctl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "vrctl")
}

func defaultKeyPath() string { return filepath.Join(cfgDir(), "key.json") }

// ---- global options ----

type rootOptions struct {
	Addr      string
	CACert    string
	Insecure  bool
	Plaintext bool
	KeyPath   string
	ProgramID string
	Timeout   time.Duration
	ProofTTL  time.Duration
}

func (o *rootOptions) deriver() address.Deriver { return address.New(o.ProgramID) }

func (o *rootOptions) loadKey() (ed25519.PrivateKey, model.Pubkey, error) {
	priv, err := crypto.LoadKey(o.KeyPath)
	if err != nil {
		return nil, model.Pubkey{}, fmt.Errorf("load key (run 'vrctl keygen' first): %w", err)
	}
	return priv, model.PubkeyFromEd25519(priv.Public().(ed25519.PublicKey)), nil
}

// ---- grpc dial ----

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func (o *rootOptions) dial() (*grpc.ClientConn, registryv1.RegistryClient, error) {
	var creds credentials.TransportCredentials
	if o.Plaintext {
		creds = insecure.NewCredentials()
	} else {
		var err error
		if creds, err = loadTLS(o.CACert, o.Insecure); err != nil {
			return nil, nil, err
		}
	}
	cc, err := grpc.NewClient(o.Addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, nil, err
	}
	return cc, registryv1.NewRegistryClient(cc), nil
}

// authorize attaches a proof signed by priv for method, and an optional co-signer proof.
func authorize(ctx context.Context, priv ed25519.PrivateKey, method string, ttl time.Duration, cosignerProof string) (context.Context, error) {
	tok, err := crypto.SignProof(priv, method, ttl, time.Now())
	if err != nil {
		return nil, err
	}
	pairs := []string{"authorization", "Bearer " + tok}
	if cosignerProof != "" {
		pairs = append(pairs, "x-cosigner-authorization", "Bearer "+cosignerProof)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...), nil
}

// ---- utils ----

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readSecret(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// ---- root ----

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "vrctl",
		Short:         "Vehicle registry client",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.Addr, "addr", "localhost:8443", "server address")
	pf.StringVar(&opts.CACert, "cacert", "", "CA cert (PEM)")
	pf.BoolVar(&opts.Insecure, "insecure", false, "skip cert verify (dev)")
	pf.BoolVar(&opts.Plaintext, "plaintext", false, "connect without TLS (dev)")
	pf.StringVar(&opts.KeyPath, "key", defaultKeyPath(), "caller key file")
	pf.StringVar(&opts.ProgramID, "program-id", "car-registry", "program identity used to derive addresses")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-command timeout")
	pf.DurationVar(&opts.ProofTTL, "proof-ttl", time.Minute, "lifetime of authorization proofs")

	cmd.AddCommand(
		newKeygenCommand(opts),
		newWhoamiCommand(opts),
		newProofCommand(opts),
		newGovKeygenCommand(opts),
		newRecoverKeyCommand(opts),
		newDeriveCommand(opts),
		newGetCommand(opts),
	)
	cmd.AddCommand(newTransitionCommands(opts)...)
	return cmd
}

// main runs the command tree and reports RPC failures with their status code.
func main() {
	if err := newRootCommand().Execute(); err != nil {
		fail(err)
	}
}

func fail(err error) {
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
