// Package secrets fills process environment variables from a Vault KV
// secret before configuration is loaded.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nahid2887/today/pkg/retry"
)

// CredentialKeys are the variables a Vault secret may provide by default.
var CredentialKeys = []string{
	"OPENAI_API_KEY",
	"GROQ_API_KEY",
	"GEMINI_API_KEY",
	"TYPESENSE_API_KEY",
	"REDIS_PASSWORD",
}

type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	// Overwrite replaces variables that are already set.
	Overwrite bool
	// Allowed limits which keys are exported; empty means CredentialKeys.
	Allowed []string
}

type VaultResult struct {
	Enabled bool
	Path    string
	Loaded  []string
	Skipped []string
}

func LoadVaultConfigFromEnv() VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     "secret",
		Path:      os.Getenv("VAULT_PATH"),
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
	}
	if mount := os.Getenv("VAULT_MOUNT"); mount != "" {
		cfg.Mount = mount
	}
	if val, err := strconv.Atoi(os.Getenv("VAULT_KV_VERSION")); err == nil {
		cfg.KVVersion = val
	}
	if val, err := strconv.Atoi(os.Getenv("VAULT_TIMEOUT_MS")); err == nil && val > 0 {
		cfg.Timeout = time.Duration(val) * time.Millisecond
	}
	if keys := os.Getenv("VAULT_KEYS"); keys != "" {
		for _, k := range strings.Split(keys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.Allowed = append(cfg.Allowed, k)
			}
		}
	}
	return cfg
}

// ApplyVaultSecrets reads the secret and exports the allowed keys. Transient
// failures are retried; auth and not-found responses are not.
func ApplyVaultSecrets(ctx context.Context, cfg VaultConfig) (VaultResult, error) {
	result := VaultResult{Enabled: cfg.Enabled, Path: cfg.Path}
	if !cfg.Enabled {
		return result, nil
	}
	if cfg.Addr == "" || cfg.Token == "" || cfg.Path == "" {
		return result, errors.New("vault configuration incomplete (VAULT_ADDR, VAULT_TOKEN, VAULT_PATH)")
	}

	url, err := buildVaultURL(cfg.Addr, cfg.Mount, cfg.Path, cfg.KVVersion)
	if err != nil {
		return result, err
	}

	var data map[string]any
	client := &http.Client{Timeout: cfg.Timeout}
	err = retry.Do(ctx, retry.FeedConfig(), func() error {
		var fetchErr error
		data, fetchErr = fetch(ctx, client, url, cfg)
		return fetchErr
	})
	if err != nil {
		return result, err
	}

	allowed := cfg.Allowed
	if len(allowed) == 0 {
		allowed = CredentialKeys
	}
	for _, key := range allowed {
		value, ok := data[key]
		if !ok {
			continue
		}
		if !cfg.Overwrite && os.Getenv(key) != "" {
			result.Skipped = append(result.Skipped, key)
			continue
		}
		if err := os.Setenv(key, stringifyVaultValue(value)); err != nil {
			return result, err
		}
		result.Loaded = append(result.Loaded, key)
	}
	return result, nil
}

type kvResponse struct {
	Data json.RawMessage `json:"data"`
}

func fetch(ctx context.Context, client *http.Client, url string, cfg VaultConfig) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("X-Vault-Token", cfg.Token)
	if cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", cfg.Namespace)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("vault fetch failed: %s %s", resp.Status, strings.TrimSpace(string(body)))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	data, err := extractVaultData(body, cfg.KVVersion)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	return data, nil
}

func buildVaultURL(addr, mount, path string, kvVersion int) (string, error) {
	addr = strings.TrimRight(addr, "/")
	mount = strings.Trim(mount, "/")
	path = strings.TrimLeft(path, "/")
	if addr == "" || mount == "" || path == "" {
		return "", errors.New("vault address, mount, and path must be set")
	}
	if kvVersion == 1 {
		return fmt.Sprintf("%s/v1/%s/%s", addr, mount, path), nil
	}
	return fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path), nil
}

// extractVaultData unwraps the KV payload; version 2 nests the secret one
// level deeper under data.data.
func extractVaultData(body []byte, kvVersion int) (map[string]any, error) {
	var outer kvResponse
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, fmt.Errorf("invalid vault response: %w", err)
	}
	raw := outer.Data
	if kvVersion != 1 {
		var inner kvResponse
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("vault response missing data for KV v2: %w", err)
		}
		raw = inner.Data
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return nil, fmt.Errorf("vault response missing data for KV v%d", max(kvVersion, 1))
	}
	return data, nil
}

func stringifyVaultValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
