package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"

	registryv1 "github.com/and161185/car-registry/api/registryv1"
	"github.com/and161185/car-registry/internal/address"
	"github.com/and161185/car-registry/internal/crypto"
	"github.com/and161185/car-registry/internal/crypto/clientcrypto"
	"github.com/and161185/car-registry/internal/model"
	"github.com/and161185/car-registry/internal/registry"
	"github.com/and161185/car-registry/internal/repository/memory"
	grpcserver "github.com/and161185/car-registry/internal/server/grpc"
	"github.com/and161185/car-registry/internal/service"
)

const testProgram = "vrctl-test"

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "vrctl")
}

// run executes one vrctl invocation and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("vrctl %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func Test_cfgDir_And_Paths(t *testing.T) {
	base := withTmpConfig(t)
	if got := cfgDir(); got != base {
		t.Fatalf("cfgDir=%q, want %q", got, base)
	}
	if !strings.HasPrefix(defaultKeyPath(), base) || !strings.HasSuffix(defaultKeyPath(), "key.json") {
		t.Fatalf("defaultKeyPath unexpected: %s", defaultKeyPath())
	}
}

func Test_keygen_whoami(t *testing.T) {
	withTmpConfig(t)

	if _, err := run(t, "whoami"); err == nil {
		t.Fatalf("whoami without a key must fail")
	}
	pub := strings.TrimSpace(mustRun(t, "keygen"))
	if _, err := model.ParsePubkey(pub); err != nil {
		t.Fatalf("keygen printed %q: %v", pub, err)
	}
	if got := strings.TrimSpace(mustRun(t, "whoami")); got != pub {
		t.Fatalf("whoami=%q, want %q", got, pub)
	}
	if _, err := run(t, "keygen"); err == nil {
		t.Fatalf("keygen must not overwrite an existing key")
	}
	if _, err := os.Stat(defaultKeyPath()); err != nil {
		t.Fatalf("key file: %v", err)
	}
}

func Test_proof_VerifiesForMethod(t *testing.T) {
	withTmpConfig(t)
	pub := strings.TrimSpace(mustRun(t, "keygen"))

	tok := strings.TrimSpace(mustRun(t, "proof", "TransferCar"))
	v := crypto.Verifier{MaxAge: 5 * time.Minute}
	signer, err := v.Verify(tok, registryv1.Registry_TransferCar_FullMethodName)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if signer.String() != pub {
		t.Fatalf("signer=%s, want %s", signer, pub)
	}
	if _, err := v.Verify(tok, registryv1.Registry_SetForSale_FullMethodName); err == nil {
		t.Fatalf("proof must be bound to its method")
	}

	car, _, _ := address.New(testProgram).Car(model.MustPubkey(pub), "VIN123")
	tok = strings.TrimSpace(mustRun(t, "proof", "TransferCar", "--transfer-car", car.String()))
	p, err := v.VerifyProof(tok, registryv1.Registry_TransferCar_FullMethodName)
	if err != nil {
		t.Fatalf("verify scoped: %v", err)
	}
	if want := registry.TransferScope(car, model.MustPubkey(pub)); p.Scope != want {
		t.Fatalf("scope=%q, want %q", p.Scope, want)
	}
}

func Test_derive_MatchesAddressPackage(t *testing.T) {
	withTmpConfig(t)
	pub := strings.TrimSpace(mustRun(t, "keygen"))
	key := model.MustPubkey(pub)
	d := address.New(testProgram)

	var got struct {
		Address string `json:"address"`
		Bump    uint8  `json:"bump"`
	}
	out := mustRun(t, "--program-id", testProgram, "derive", "user", pub, "alice")
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want, bump, _ := d.User(key, "alice")
	if got.Address != want.String() || got.Bump != bump {
		t.Fatalf("derive user = %+v, want %s/%d", got, want, bump)
	}

	car, _, _ := d.Car(key, "VIN123")
	out = mustRun(t, "--program-id", testProgram, "derive", "conformity-report", car.String(), pub, "R-1")
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want, _, _ = d.ConformityReport(car, key, "R-1")
	if got.Address != want.String() {
		t.Fatalf("derive conformity-report = %s, want %s", got.Address, want)
	}

	if _, err := run(t, "derive", "user", "not-a-key", "alice"); err == nil {
		t.Fatalf("bad key must fail")
	}
}

func Test_govKeygen(t *testing.T) {
	out := mustRun(t, "gov-keygen")
	var kp map[string]string
	if err := json.Unmarshal([]byte(out), &kp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := x25519Key(kp["publicKey"]); err != nil {
		t.Fatalf("public key: %v", err)
	}
	if _, err := x25519Key(kp["privateKey"]); err != nil {
		t.Fatalf("private key: %v", err)
	}
}

// startServer serves a memory-backed registry on a loopback port.
func startServer(t *testing.T) string {
	t.Helper()
	log := zaptest.NewLogger(t)
	svc := service.NewRegistryService(memory.New(), registry.New(registry.DefaultConfig(), address.New(testProgram)), log)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcserver.RecoverUnary(log),
		grpcserver.AuthUnary(crypto.Verifier{MaxAge: 5 * time.Minute, Leeway: 5 * time.Second}, grpcserver.PublicMethods...),
	))
	registryv1.RegisterRegistryServer(gs, grpcserver.New(svc))
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)
	return lis.Addr().String()
}

func Test_SaleFlow_AgainstServer(t *testing.T) {
	dir := withTmpConfig(t)
	addr := startServer(t)

	as := func(who string) []string {
		return []string{"--addr", addr, "--plaintext", "--program-id", testProgram, "--key", filepath.Join(dir, who+".json")}
	}
	vrctl := func(who string, args ...string) string {
		t.Helper()
		return mustRun(t, append(as(who), args...)...)
	}

	govPub := strings.TrimSpace(vrctl("gov", "keygen"))
	alicePub := strings.TrimSpace(vrctl("alice", "keygen"))
	bobPub := strings.TrimSpace(vrctl("bob", "keygen"))

	vrctl("gov", "register-user", "ministry", "Government")
	vrctl("alice", "register-user", "alice", "Normal")
	vrctl("bob", "register-user", "bob", "Normal")

	const vin = "1HGBH41JXMN109186"
	var created registryv1.TransitionResponse
	if err := json.Unmarshal([]byte(vrctl("gov", "register-car", vin, alicePub, "--as", "ministry", "--brand", "Honda", "--year", "2021")), &created); err != nil {
		t.Fatalf("decode register-car: %v", err)
	}
	car, _, _ := address.New(testProgram).Car(model.MustPubkey(govPub), vin)
	if len(created.Created) != 1 || created.Created[0] != car.String() {
		t.Fatalf("created=%v, want %s", created.Created, car)
	}

	vrctl("alice", "set-for-sale", car.String(), "15000")
	vrctl("bob", "request-buy", car.String(), "--message", "cash")
	vrctl("alice", "accept-buy", car.String(), bobPub)

	if _, err := run(t, append(as("alice"), "transfer-car", car.String(), bobPub, "--new-owner-user-name", "bob")...); err == nil {
		t.Fatalf("transfer without the new owner's co-signature must fail")
	}
	vrctl("alice", "transfer-car", car.String(), bobPub,
		"--new-owner-user-name", "bob",
		"--cosigner-key", filepath.Join(dir, "bob.json"),
		"--with-buy-request")

	var got struct {
		Kind   string    `json:"kind"`
		Record model.Car `json:"record"`
	}
	if err := json.Unmarshal([]byte(vrctl("bob", "get", car.String())), &got); err != nil {
		t.Fatalf("decode get: %v", err)
	}
	if got.Kind != string(model.KindCar) || got.Record.Owner.String() != bobPub || got.Record.TransferCount != 1 || got.Record.IsForSale {
		t.Fatalf("car after transfer = %+v", got)
	}
}

func Test_recoverKey_Passphrase(t *testing.T) {
	dir := withTmpConfig(t)
	addr := startServer(t)
	keyPath := filepath.Join(dir, "alice.json")
	base := []string{"--addr", addr, "--plaintext", "--program-id", testProgram, "--key", keyPath}

	pub := strings.TrimSpace(mustRun(t, append(base, "keygen")...))
	pass := filepath.Join(dir, "pass.txt")
	if err := os.WriteFile(pass, []byte("correct horse\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	mustRun(t, append(base, "register-user", "alice", "Normal", "--passphrase-file", pass)...)

	user, _, _ := address.New(testProgram).User(model.MustPubkey(pub), "alice")
	out := filepath.Join(dir, "restored.json")
	mustRun(t, append(base, "recover-key", "--user", user.String(), "--passphrase-file", pass, "--out", out)...)

	restored, err := crypto.LoadKey(out)
	if err != nil {
		t.Fatalf("load restored: %v", err)
	}
	orig, _ := crypto.LoadKey(keyPath)
	if !bytes.Equal(restored, orig) {
		t.Fatalf("restored key differs")
	}

	wrong := filepath.Join(dir, "wrong.txt")
	_ = os.WriteFile(wrong, []byte("battery staple"), 0o600)
	if _, err := run(t, append(base, "recover-key", "--user", user.String(), "--passphrase-file", wrong, "--out", filepath.Join(dir, "x.json"))...); err == nil {
		t.Fatalf("wrong passphrase must fail")
	}
}

func Test_x25519Key(t *testing.T) {
	pub, _, err := clientcrypto.GenerateGovernmentKey()
	if err != nil {
		t.Fatal(err)
	}
	got, err := x25519Key(base58.Encode(pub[:]))
	if err != nil || *got != *pub {
		t.Fatalf("x25519Key round trip: %v", err)
	}
	if _, err := x25519Key("111"); err == nil {
		t.Fatalf("short key must fail")
	}
}
