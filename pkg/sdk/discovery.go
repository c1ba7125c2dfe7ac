package sdk

import (
	"crypto/tls"
	"os"

	"github.com/celerix-dev/labcheck/internal/engine"
	"github.com/celerix-dev/labcheck/internal/training"
	"github.com/rs/zerolog/log"
)

// TLSFromEnv returns the client TLS configuration selected by LABCHECK_TLS and
// LABCHECK_TLS_SKIP_VERIFY, or nil for plain TCP.
func TLSFromEnv() *tls.Config {
	if os.Getenv("LABCHECK_TLS") != "true" {
		return nil
	}
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		// for daemons running with a self-signed certificate
		InsecureSkipVerify: os.Getenv("LABCHECK_TLS_SKIP_VERIFY") == "true",
	}
}

// New initializes the service based on the environment.
// It returns the interface, so the caller doesn't care if it's local or remote.
func New(local engine.Conf) (TrainingService, func() error, error) {
	// 1. Check if a remote daemon is defined in the environment
	if remoteAddr := os.Getenv("LABCHECK_ADDR"); remoteAddr != "" {
		client, err := Connect(remoteAddr, TLSFromEnv())
		if err == nil {
			return client, client.Close, nil
		}
		log.Warn().Err(err).Str("addr", remoteAddr).Msg("daemon unreachable, using the local store")
	}

	// 2. Fallback to embedded mode
	// This uses the same engine the daemon uses, but inside the caller's process.
	store, err := engine.Open(local)
	if err != nil {
		return nil, nil, err
	}
	return training.NewTracker(store, training.DefaultBank()), store.Close, nil
}
