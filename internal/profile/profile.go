package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where dwellify stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// Secret is the signing secret shared with the identity provider
	Secret string

	// AI configuration
	AIBaseURL        string // DWELLIFY_AI_BASE_URL (default: https://api.openai.com/v1)
	AIAPIKey         string // DWELLIFY_AI_API_KEY
	AIEmbeddingModel string // DWELLIFY_AI_EMBEDDING_MODEL (default: text-embedding-3-small)
	AIChatModel      string // DWELLIFY_AI_CHAT_MODEL (default: gpt-4o-mini)

	// MLS listing provider configuration
	MLSBaseURL string // DWELLIFY_MLS_BASE_URL (default: https://api.repliers.io)
	MLSAPIKey  string // DWELLIFY_MLS_API_KEY

	// Valuation provider configuration. Optional; when the key is empty the
	// valuation client degrades to "no data".
	ValuationBaseURL string // DWELLIFY_VALUATION_BASE_URL
	ValuationAPIKey  string // DWELLIFY_VALUATION_API_KEY
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an AI API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIAPIKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from DWELLIFY_* environment variables.
func (p *Profile) FromEnv() {
	p.AIBaseURL = getEnvOrDefault("DWELLIFY_AI_BASE_URL", "https://api.openai.com/v1")
	p.AIAPIKey = os.Getenv("DWELLIFY_AI_API_KEY")
	p.AIEmbeddingModel = getEnvOrDefault("DWELLIFY_AI_EMBEDDING_MODEL", "text-embedding-3-small")
	p.AIChatModel = getEnvOrDefault("DWELLIFY_AI_CHAT_MODEL", "gpt-4o-mini")

	p.MLSBaseURL = getEnvOrDefault("DWELLIFY_MLS_BASE_URL", "https://api.repliers.io")
	p.MLSAPIKey = os.Getenv("DWELLIFY_MLS_API_KEY")

	p.ValuationBaseURL = getEnvOrDefault("DWELLIFY_VALUATION_BASE_URL", "https://api.hasdata.com/v1/zillow")
	p.ValuationAPIKey = os.Getenv("DWELLIFY_VALUATION_API_KEY")

	if p.Secret == "" {
		p.Secret = os.Getenv("DWELLIFY_SECRET")
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported db driver %q", p.Driver)
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for postgres driver")
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("dwellify_%s.db", p.Mode))
	}

	return nil
}
