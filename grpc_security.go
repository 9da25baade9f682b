package main

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"starfolio/navigator/internal/auth"
	configpkg "starfolio/navigator/internal/config"
	grpcstream "starfolio/navigator/internal/grpc"
	"starfolio/navigator/internal/logging"
)

const sharedSecretMetadataKey = "x-navigator-shared-secret"

// configureGRPCSecurity returns the server options for the Fly surface: transport
// credentials from the TLS settings, and a stream guard when a shared secret or pilot
// tokens are configured.
func configureGRPCSecurity(cfg *configpkg.Config, tokens *auth.PilotTokens, logger *logging.Logger) ([]grpc.ServerOption, error) {
	if cfg == nil {
		return nil, errors.New("grpc config required")
	}
	if logger == nil {
		logger = logging.L()
	}
	var opts []grpc.ServerOption

	creds, mode, err := transportCredentials(cfg)
	if err != nil {
		return nil, err
	}
	if creds != nil {
		opts = append(opts, grpc.Creds(creds))
	}

	guard := streamGuard{secret: strings.TrimSpace(cfg.GRPC.SharedSecret), tokens: tokens}
	if guard.enabled() {
		opts = append(opts, grpc.ChainStreamInterceptor(guard.intercept))
	}
	logger.Info("gRPC security configured",
		logging.String("transport", mode),
		logging.Bool("shared_secret", guard.secret != ""),
		logging.Bool("pilot_tokens", tokens != nil),
	)
	if creds == nil && !guard.enabled() {
		logger.Warn("gRPC surface accepts unauthenticated plaintext streams")
	}
	return opts, nil
}

// transportCredentials picks mTLS when a client CA is set, server TLS when only a
// certificate is set, and plaintext otherwise.
func transportCredentials(cfg *configpkg.Config) (credentials.TransportCredentials, string, error) {
	switch {
	case cfg.GRPC.ClientCAPath != "":
		creds, err := loadMTLSCredentials(cfg.TLSCertPath, cfg.TLSKeyPath, cfg.GRPC.ClientCAPath)
		return creds, "mtls", err
	case cfg.TLSCertPath != "":
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertPath, cfg.TLSKeyPath)
		if err != nil {
			return nil, "", fmt.Errorf("load server keypair: %w", err)
		}
		return creds, "tls", nil
	default:
		return nil, "plaintext", nil
	}
}

// streamGuard admits a Fly stream only with the shared secret (when set) and a valid
// pilot token (when tokens are configured). A verified token names the session.
type streamGuard struct {
	secret string
	tokens *auth.PilotTokens
}

func (g streamGuard) enabled() bool {
	return g.secret != "" || g.tokens != nil
}

func (g streamGuard) intercept(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	md, _ := metadata.FromIncomingContext(ss.Context())
	if g.secret != "" {
		candidate := sharedSecretFrom(md)
		if candidate == "" {
			return status.Error(codes.Unauthenticated, "missing shared secret")
		}
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(g.secret)) != 1 {
			return status.Error(codes.Unauthenticated, "invalid shared secret")
		}
	}
	if g.tokens != nil {
		token := firstMetadata(md, grpcstream.PilotTokenMetadataKey)
		if token == "" {
			return status.Error(codes.Unauthenticated, "missing pilot token")
		}
		claims, err := g.tokens.Verify(token)
		if err != nil {
			return status.Errorf(codes.Unauthenticated, "pilot token rejected: %v", err)
		}
		ss = &identifiedStream{ServerStream: ss, ctx: grpcstream.ContextWithVerifiedPilot(ss.Context(), claims.PilotID)}
	}
	return handler(srv, ss)
}

// identifiedStream swaps in a context carrying the verified pilot id.
type identifiedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identifiedStream) Context() context.Context { return s.ctx }

// sharedSecretFrom accepts the dedicated key or an Authorization bearer value.
func sharedSecretFrom(md metadata.MD) string {
	if secret := firstMetadata(md, sharedSecretMetadataKey); secret != "" {
		return secret
	}
	for _, value := range md.Get("authorization") {
		if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
			if token := strings.TrimSpace(value[7:]); token != "" {
				return token
			}
		}
	}
	return ""
}

func firstMetadata(md metadata.MD, key string) string {
	for _, value := range md.Get(key) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func loadMTLSCredentials(certPath, keyPath, caPath string) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load server keypair: %w", err)
	}
	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("read client ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("client ca %s holds no PEM certificates", caPath)
	}
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}), nil
}
