package llm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

var keyringInitOnce sync.Once

// Keyring holds one API key in a sealed memguard enclave so the plaintext
// never sits in regular heap memory between requests.
type Keyring struct {
	enclave *memguard.Enclave
}

// LoadKeyring reads the API key from the environment variable, falling back
// to the given secret file (Podman/Docker secrets mount), and seals it.
func LoadKeyring(envVar, secretPath string) (*Keyring, error) {
	keyringInitOnce.Do(memguard.CatchInterrupt)

	key := os.Getenv(envVar)
	if key == "" && secretPath != "" {
		raw, err := os.ReadFile(secretPath)
		if err == nil {
			key = strings.TrimSpace(string(raw))
			slog.Info("Read API key from secrets mount", "path", secretPath)
		}
	}
	if key == "" {
		return nil, fmt.Errorf("%s environment variable not set and secret not found", envVar)
	}
	return &Keyring{enclave: memguard.NewEnclave([]byte(key))}, nil
}

// Expose opens the enclave and hands the plaintext key to fn. The unsealed
// buffer is destroyed before Expose returns; fn must not retain the string
// beyond the request it signs.
func (k *Keyring) Expose(fn func(key string) error) error {
	buf, err := k.enclave.Open()
	if err != nil {
		return fmt.Errorf("failed to open key enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.String())
}
