package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"starfolio/navigator/internal/auth"
	configpkg "starfolio/navigator/internal/config"
	grpcstream "starfolio/navigator/internal/grpc"
	"starfolio/navigator/internal/logging"
)

type stubServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *stubServerStream) Context() context.Context {
	return s.ctx
}

func generateSelfSignedCert(t *testing.T) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "navigator.test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"navigator.test"},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certFile, keyFile
}

func guardStream(pairs ...string) *stubServerStream {
	return &stubServerStream{ctx: metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))}
}

func runGuard(t *testing.T, guard streamGuard, stream grpc.ServerStream) (string, error) {
	t.Helper()
	var pilotID string
	err := guard.intercept(nil, stream, &grpc.StreamServerInfo{}, func(_ any, ss grpc.ServerStream) error {
		pilotID = grpcstream.PilotIDFromContext(ss.Context())
		return nil
	})
	return pilotID, err
}

func TestStreamGuardSharedSecret(t *testing.T) {
	guard := streamGuard{secret: "hunter2"}

	tests := map[string]struct {
		stream *stubServerStream
		code   codes.Code
	}{
		"dedicated_key": {stream: guardStream(sharedSecretMetadataKey, "hunter2"), code: codes.OK},
		"bearer":        {stream: guardStream("authorization", "Bearer hunter2"), code: codes.OK},
		"missing":       {stream: &stubServerStream{ctx: context.Background()}, code: codes.Unauthenticated},
		"wrong":         {stream: guardStream(sharedSecretMetadataKey, "hunter3"), code: codes.Unauthenticated},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := runGuard(t, guard, tc.stream)
			if status.Code(err) != tc.code {
				t.Fatalf("expected %v, got %v", tc.code, err)
			}
		})
	}
}

func TestStreamGuardStampsVerifiedPilot(t *testing.T) {
	tokens, err := auth.NewPilotTokens("pilots", time.Second)
	if err != nil {
		t.Fatalf("NewPilotTokens: %v", err)
	}
	token, err := tokens.Issue("ace", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	guard := streamGuard{tokens: tokens}

	//1.- A valid token names the session even when the client claims another id.
	pilotID, err := runGuard(t, guard, guardStream(grpcstream.PilotTokenMetadataKey, token, grpcstream.PilotIDMetadataKey, "impostor"))
	if err != nil {
		t.Fatalf("guard rejected valid token: %v", err)
	}
	if pilotID != "ace" {
		t.Fatalf("expected verified pilot id, got %q", pilotID)
	}

	//2.- Missing or forged tokens are refused before a session exists.
	if _, err := runGuard(t, guard, guardStream(grpcstream.PilotIDMetadataKey, "ace")); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected missing token refusal, got %v", err)
	}
	if _, err := runGuard(t, guard, guardStream(grpcstream.PilotTokenMetadataKey, token+"x")); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected forged token refusal, got %v", err)
	}
}

func TestLoadMTLSCredentialsFailsWithBadPaths(t *testing.T) {
	if _, err := loadMTLSCredentials("missing-cert", "missing-key", "missing-ca"); err == nil {
		t.Fatal("expected error for missing files")
	}
}

func TestConfigureGRPCSecurityOptions(t *testing.T) {
	certFile, keyFile := generateSelfSignedCert(t)
	tokens, err := auth.NewPilotTokens("pilots", 0)
	if err != nil {
		t.Fatalf("NewPilotTokens: %v", err)
	}

	tests := map[string]struct {
		cfg    *configpkg.Config
		tokens *auth.PilotTokens
		want   int
	}{
		"plaintext":   {cfg: &configpkg.Config{}, want: 0},
		"tokens_only": {cfg: &configpkg.Config{}, tokens: tokens, want: 1},
		"mtls":        {cfg: &configpkg.Config{TLSCertPath: certFile, TLSKeyPath: keyFile, GRPC: configpkg.GRPCConfig{ClientCAPath: certFile}}, want: 1},
		"tls_secret":  {cfg: &configpkg.Config{TLSCertPath: certFile, TLSKeyPath: keyFile, GRPC: configpkg.GRPCConfig{SharedSecret: "hunter2"}}, want: 2},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			opts, err := configureGRPCSecurity(tc.cfg, tc.tokens, logging.NewTestLogger())
			if err != nil {
				t.Fatalf("configureGRPCSecurity: %v", err)
			}
			if len(opts) != tc.want {
				t.Fatalf("expected %d options, got %d", tc.want, len(opts))
			}
		})
	}
}

func TestConfigureGRPCSecurityRejectsUnreadableCA(t *testing.T) {
	certFile, keyFile := generateSelfSignedCert(t)
	cfg := &configpkg.Config{TLSCertPath: certFile, TLSKeyPath: keyFile, GRPC: configpkg.GRPCConfig{ClientCAPath: keyFile}}
	if _, err := configureGRPCSecurity(cfg, nil, logging.NewTestLogger()); err == nil {
		t.Fatal("expected a CA bundle without certificates to be rejected")
	}
}
