package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

// InitAuthKeys builds the KeyManager from the configured key material.
//
// Key sources, in order of precedence:
//   - AUTH_PRIVATE_KEY_FILE: a PEM key for the configured algorithm.
//   - AUTH_PRIVATE_KEY_HEX: a raw P-256 scalar, ES256 only.
//   - neither: a key is generated on startup. Every token issued before a
//     restart becomes invalid.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Algorithm:     cfg.Algorithm,
		KeyID:         cfg.KeyID,
		PrivateKeyHex: cfg.PrivateKeyHex,
		RSABits:       cfg.RSABits,
	}

	if cfg.PrivateKeyFile != "" {
		pemKey, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		opts.PrivateKeyPEM = pemKey
	}

	km, err := jwtx.NewKeyManager(opts)
	if err != nil {
		return nil, err
	}

	if km.Ephemeral() {
		logger.Warn("no signing key configured, generated an ephemeral key",
			"algorithm", km.Algorithm(),
			"kid", cfg.KeyID,
		)
	} else {
		logger.Info("signing key loaded", "algorithm", km.Algorithm(), "kid", cfg.KeyID)
	}
	return km, nil
}
