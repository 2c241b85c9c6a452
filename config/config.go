package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when no explicit path is given and the file exists.
const DefaultConfigFile = "config.yaml"

// Config is the single configuration structure injected at startup.
type Config struct {
	DataRoot        string          `yaml:"data_root"`
	IndexRoot       string          `yaml:"index_root"`
	AllowedSubjects []string        `yaml:"allowed_subjects"`
	Chunking        ChunkingConfig  `yaml:"chunking"`
	Embedding       EmbeddingConfig `yaml:"embedding"`
	OCR             OCRConfig       `yaml:"ocr"`
	LLM             LLMConfig       `yaml:"llm"`
	Index           IndexConfig     `yaml:"index"`
	Retrieval       RetrievalConfig `yaml:"retrieval"`
	HTTP            HTTPConfig      `yaml:"http"`
	Logging         LoggingConfig   `yaml:"logging"`
	PDF             PDFConfig       `yaml:"pdf"`
}

// ChunkingConfig controls the recursive character splitter.
type ChunkingConfig struct {
	Size    int  `yaml:"size"`    // characters per chunk (default 1000)
	Overlap *int `yaml:"overlap"` // overlapping characters (default 200, capped at size/5); 0 is valid
}

// OverlapChars returns the configured overlap, or the default when unset.
func (c ChunkingConfig) OverlapChars() int {
	if c.Overlap == nil {
		return min(200, c.Size/5)
	}
	return *c.Overlap
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // ollama, openai, gemini, minilm
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	BatchSize int    `yaml:"batch_size"`
}

// OCRConfig holds the OCR fallback tools. Paths default to PATH lookups.
type OCRConfig struct {
	Disabled      bool          `yaml:"disabled"`
	PdftoppmPath  string        `yaml:"pdftoppm_path"`
	TesseractPath string        `yaml:"tesseract_path"`
	Language      string        `yaml:"language"`
	DPI           int           `yaml:"dpi"`
	Timeout       time.Duration `yaml:"timeout"`
}

// LLMConfig selects the text completion backend.
type LLMConfig struct {
	Provider string        `yaml:"provider"` // ollama-cli, ollama, gemini
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Command  string        `yaml:"command"` // binary used by ollama-cli
	Timeout  time.Duration `yaml:"timeout"`
}

// IndexConfig selects the vector store backend.
type IndexConfig struct {
	Backend      string `yaml:"backend"`       // sqlite, chroma
	ReingestMode string `yaml:"reingest_mode"` // replace, append
	ChromaURL    string `yaml:"chroma_url"`
}

// RetrievalConfig tunes scoped retrieval.
type RetrievalConfig struct {
	Candidates int `yaml:"candidates"`
	DefaultK   int `yaml:"default_k"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // prod, dev, local
	Level string `yaml:"level"` // debug, info, warn, error
}

// PDFConfig holds the UniPDF metered license key.
type PDFConfig struct {
	LicenseKey string `yaml:"license_key"`
}

// Load reads .env (if present), the YAML file at path (optional when empty),
// applies environment overrides and defaults, then validates.
func Load(path string) (Config, error) {
	// A missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	var cfg Config
	if path == "" && fileExists(DefaultConfigFile) {
		path = DefaultConfigFile
	}
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		data = expandEnvVars(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(path string) Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// applyEnv lets well-known environment variables override file values.
func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.DataRoot, "STUDYRAG_DATA_ROOT")
	setString(&c.IndexRoot, "STUDYRAG_INDEX_ROOT")
	setString(&c.Index.Backend, "STUDYRAG_INDEX_BACKEND")
	setString(&c.Index.ChromaURL, "CHROMA_URL")
	setString(&c.Embedding.Provider, "STUDYRAG_EMBEDDING_PROVIDER")
	setString(&c.LLM.Provider, "STUDYRAG_LLM_PROVIDER")
	setString(&c.Logging.Env, "ENV")
	setString(&c.PDF.LicenseKey, "UNIDOC_LICENSE_KEY")

	if v := os.Getenv("STUDYRAG_ALLOWED_SUBJECTS"); v != "" {
		c.AllowedSubjects = splitList(v)
	}
	if v := os.Getenv("STUDYRAG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = port
		}
	}

	if c.Embedding.APIKey == "" {
		switch c.Embedding.Provider {
		case "gemini":
			c.Embedding.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.LLM.APIKey == "" && c.LLM.Provider == "gemini" {
		c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.DataRoot == "" {
		c.DataRoot = "data"
	}
	if c.IndexRoot == "" {
		c.IndexRoot = "chroma_db"
	}
	if len(c.AllowedSubjects) == 0 {
		c.AllowedSubjects = []string{"CS3491", "MA3251"}
	}
	if c.Chunking.Size <= 0 {
		c.Chunking.Size = 1000
	}
	if c.Chunking.Overlap == nil {
		overlap := c.Chunking.OverlapChars()
		c.Chunking.Overlap = &overlap
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.Model == "" {
		switch c.Embedding.Provider {
		case "openai":
			c.Embedding.Model = "text-embedding-3-small"
		case "gemini":
			c.Embedding.Model = "text-embedding-004"
		case "minilm":
			c.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
		default:
			c.Embedding.Model = "nomic-embed-text:v1.5"
		}
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.OCR.PdftoppmPath == "" {
		c.OCR.PdftoppmPath = "pdftoppm"
	}
	if c.OCR.TesseractPath == "" {
		c.OCR.TesseractPath = "tesseract"
	}
	if c.OCR.Language == "" {
		c.OCR.Language = "eng"
	}
	if c.OCR.DPI <= 0 {
		c.OCR.DPI = 300
	}
	if c.OCR.Timeout <= 0 {
		c.OCR.Timeout = 60 * time.Second
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "ollama-cli"
	}
	if c.LLM.Model == "" {
		if c.LLM.Provider == "gemini" {
			c.LLM.Model = "gemini-2.5-flash"
		} else {
			c.LLM.Model = "llama3.1:8b"
		}
	}
	if c.LLM.Command == "" {
		c.LLM.Command = "ollama"
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 5 * time.Minute
	}
	if c.Index.Backend == "" {
		c.Index.Backend = "sqlite"
	}
	if c.Index.ReingestMode == "" {
		c.Index.ReingestMode = "replace"
	}
	if c.Retrieval.Candidates <= 0 {
		c.Retrieval.Candidates = 20
	}
	if c.Retrieval.DefaultK <= 0 {
		c.Retrieval.DefaultK = 6
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.StaticDir == "" {
		c.HTTP.StaticDir = "static"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "local"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	var errs []error

	if len(c.AllowedSubjects) == 0 {
		errs = append(errs, errors.New("allowed_subjects must not be empty"))
	}
	for _, s := range c.AllowedSubjects {
		if s == "" || strings.ContainsAny(s, `/\.`) {
			errs = append(errs, fmt.Errorf("allowed_subjects: invalid subject code %q", s))
		}
	}
	if overlap := c.Chunking.OverlapChars(); overlap < 0 || overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunking.overlap (%d) must be in [0, chunking.size (%d))",
			overlap, c.Chunking.Size))
	}
	switch c.Embedding.Provider {
	case "ollama", "openai", "gemini", "minilm":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider must be one of ollama, openai, gemini, minilm, got %q",
			c.Embedding.Provider))
	}
	switch c.LLM.Provider {
	case "ollama-cli", "ollama", "gemini":
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be one of ollama-cli, ollama, gemini, got %q", c.LLM.Provider))
	}
	switch c.Index.Backend {
	case "sqlite":
	case "chroma":
		if c.Index.ChromaURL == "" {
			errs = append(errs, errors.New("index.chroma_url is required for the chroma backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("index.backend must be sqlite or chroma, got %q", c.Index.Backend))
	}
	switch c.Index.ReingestMode {
	case "replace", "append":
	default:
		errs = append(errs, fmt.Errorf("index.reingest_mode must be replace or append, got %q", c.Index.ReingestMode))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}

	return errors.Join(errs...)
}

// IsAllowedSubject reports whether code is in the subject allow-list.
func (c *Config) IsAllowedSubject(code string) bool {
	return slices.Contains(c.AllowedSubjects, code)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
