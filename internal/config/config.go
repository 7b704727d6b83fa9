// Package config loads every environment-driven tunable named in the
// specification's CLI/env section from a .env file, generalizing the
// teacher's ModelConfig/ConfigFile pair into one typed struct with sane
// zero-value defaults instead of a panic-on-missing-file init().
package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// ExpertTriggerMode controls when the Expert LLM revision pass runs.
type ExpertTriggerMode string

const (
	ExpertTriggerOff    ExpertTriggerMode = "off"
	ExpertTriggerAlways ExpertTriggerMode = "always"
	ExpertTriggerScore  ExpertTriggerMode = "score"
)

// PlannerActivationMode controls when the Planner gate is evaluated at all.
type PlannerActivationMode string

const (
	PlannerActivationOff         PlannerActivationMode = "off"
	PlannerActivationAlways      PlannerActivationMode = "always"
	PlannerActivationComplexOnly PlannerActivationMode = "complex_only"
)

// RetrievalMode selects the retriever's ranking strategy.
type RetrievalMode string

const (
	RetrievalBM25ThenRerank RetrievalMode = "bm25_then_rerank"
	RetrievalHybridLegacy   RetrievalMode = "hybrid_legacy"
)

// Config is the single source of truth for every tunable named in spec §6.
type Config struct {
	// LLM
	EngineerModel     string
	ExpertModel       string
	PlannerModel      string
	ClarifierModel    string
	RepairModel       string
	LLMTimeoutSec     int
	MaxRetryAttempts  int
	EngineerMaxTokens int
	ExpertMaxTokens   int

	ExpertTriggerMode     ExpertTriggerMode
	ExpertScoreThreshold  int
	PlannerActivationMode PlannerActivationMode
	PlannerComplexityThreshold int
	PlannerMinQuestionTokens   int
	PlannerRequiredGateCount   int

	// Retrieval
	RAGRetrievalMode  RetrievalMode
	RAGTopK           int
	RAGHybridEnabled  bool
	RAGBM25MaxDocs    int
	RAGDenseCandidates int

	// Executor
	DBTimeoutSec              int
	CallTimeoutMs             int
	RowCap                    int
	SQLAutoRepairEnabled      bool
	SQLAutoRepairMaxAttempts  int

	// Oneshot pipeline toggles
	OneshotPostprocessEnabled      bool
	OneshotIntentGuardEnabled      bool
	OneshotIntentRealignEnabled    bool
	DefaultScopeAutofillEnabled    bool
	TranslateKoToEn                bool

	// HTTP
	APIRequestTimeoutSec int
	HTTPAddr             string
	VisMaxRows           int

	// Policy
	JoinCountCap int

	// Infra
	EventsLogPath        string
	EventsLogMaxSizeMB   int
	EventsLogMaxBackups  int
	MetadataDir          string
	VectorStorePath      string
	MongoURI             string
	MongoDatabase        string
	MongoTimeoutMs       int
	LearnedFixStorePath  string
	PostprocessRulesPath string
	ChartRulesPath       string
}

// Default returns the zero-config defaults, matching the numeric/behavioral
// defaults called out explicitly in the spec (callTimeoutMs floor 180000,
// apiRequestTimeoutSec >=190, plannerRequiredGateCount default 2, ...).
func Default() *Config {
	return &Config{
		EngineerModel:     "deepseek-v3",
		ExpertModel:       "deepseek-v3",
		PlannerModel:      "qwen-max",
		ClarifierModel:    "qwen-max",
		RepairModel:       "deepseek-v3",
		LLMTimeoutSec:     60,
		MaxRetryAttempts:  2,
		EngineerMaxTokens: 2048,
		ExpertMaxTokens:   2048,

		ExpertTriggerMode:          ExpertTriggerScore,
		ExpertScoreThreshold:       5,
		PlannerActivationMode:      PlannerActivationComplexOnly,
		PlannerComplexityThreshold: 3,
		PlannerMinQuestionTokens:   12,
		PlannerRequiredGateCount:   2,

		RAGRetrievalMode:   RetrievalBM25ThenRerank,
		RAGTopK:            12,
		RAGHybridEnabled:   true,
		RAGBM25MaxDocs:     2500,
		RAGDenseCandidates: 40,

		DBTimeoutSec:             180,
		CallTimeoutMs:            180000,
		RowCap:                   5000,
		SQLAutoRepairEnabled:     true,
		SQLAutoRepairMaxAttempts: 1,

		OneshotPostprocessEnabled:   true,
		OneshotIntentGuardEnabled:   true,
		OneshotIntentRealignEnabled: true,
		DefaultScopeAutofillEnabled: false,
		TranslateKoToEn:             true,

		APIRequestTimeoutSec: 190,
		HTTPAddr:             ":8080",
		VisMaxRows:           10000,

		JoinCountCap: 6,

		EventsLogPath:        "./data/events.ndjson",
		EventsLogMaxSizeMB:    50,
		EventsLogMaxBackups:   5,
		MetadataDir:           "./data/metadata",
		VectorStorePath:       "./data/vectors.db",
		MongoURI:              "mongodb://localhost:27017",
		MongoDatabase:         "querylens",
		MongoTimeoutMs:        2000,
		LearnedFixStorePath:   "./data/learned_fixes.json",
		PostprocessRulesPath:  "./data/rules/postprocess.yaml",
		ChartRulesPath:        "./data/rules/chart.yaml",
	}
}

var (
	loadOnce sync.Once
)

// Load reads .env (if present; a missing file is not an error, matching the
// teacher's tolerant file-probing style in llm/config.go minus the panic)
// and overlays process environment variables onto the defaults.
func Load(envPath string) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}
	loadOnce.Do(func() {
		_ = godotenv.Load(envPath)
	})

	c := Default()
	str(&c.EngineerModel, "ENGINEER_MODEL")
	str(&c.ExpertModel, "EXPERT_MODEL")
	str(&c.PlannerModel, "PLANNER_MODEL")
	str(&c.ClarifierModel, "CLARIFIER_MODEL")
	str(&c.RepairModel, "REPAIR_MODEL")
	intv(&c.LLMTimeoutSec, "LLM_TIMEOUT_SEC")
	intv(&c.MaxRetryAttempts, "MAX_RETRY_ATTEMPTS")
	intv(&c.EngineerMaxTokens, "ENGINEER_MAX_TOKENS")
	intv(&c.ExpertMaxTokens, "EXPERT_MAX_TOKENS")

	if v, ok := lookup("EXPERT_TRIGGER_MODE"); ok {
		c.ExpertTriggerMode = ExpertTriggerMode(v)
	}
	intv(&c.ExpertScoreThreshold, "EXPERT_SCORE_THRESHOLD")
	if v, ok := lookup("PLANNER_ACTIVATION_MODE"); ok {
		c.PlannerActivationMode = PlannerActivationMode(v)
	}
	intv(&c.PlannerComplexityThreshold, "PLANNER_COMPLEXITY_THRESHOLD")
	intv(&c.PlannerMinQuestionTokens, "PLANNER_MIN_QUESTION_TOKENS")
	intv(&c.PlannerRequiredGateCount, "PLANNER_REQUIRED_GATE_COUNT")

	if v, ok := lookup("RAG_RETRIEVAL_MODE"); ok {
		c.RAGRetrievalMode = RetrievalMode(v)
	}
	intv(&c.RAGTopK, "RAG_TOP_K")
	boolv(&c.RAGHybridEnabled, "RAG_HYBRID_ENABLED")
	intv(&c.RAGBM25MaxDocs, "RAG_BM25_MAX_DOCS")
	intv(&c.RAGDenseCandidates, "RAG_DENSE_CANDIDATES")

	intv(&c.DBTimeoutSec, "DB_TIMEOUT_SEC")
	intv(&c.CallTimeoutMs, "CALL_TIMEOUT_MS")
	if c.CallTimeoutMs < 180000 {
		c.CallTimeoutMs = 180000 // timeout floors at 180s, spec §4.11
	}
	intv(&c.RowCap, "ROW_CAP")
	boolv(&c.SQLAutoRepairEnabled, "SQL_AUTO_REPAIR_ENABLED")
	intv(&c.SQLAutoRepairMaxAttempts, "SQL_AUTO_REPAIR_MAX_ATTEMPTS")

	boolv(&c.OneshotPostprocessEnabled, "ONESHOT_POSTPROCESS_ENABLED")
	boolv(&c.OneshotIntentGuardEnabled, "ONESHOT_INTENT_GUARD_ENABLED")
	boolv(&c.OneshotIntentRealignEnabled, "ONESHOT_INTENT_REALIGN_ENABLED")
	boolv(&c.DefaultScopeAutofillEnabled, "DEFAULT_SCOPE_AUTOFILL_ENABLED")
	boolv(&c.TranslateKoToEn, "TRANSLATE_KO_TO_EN")

	intv(&c.APIRequestTimeoutSec, "API_REQUEST_TIMEOUT_SEC")
	if c.APIRequestTimeoutSec < 190 {
		c.APIRequestTimeoutSec = 190
	}
	str(&c.HTTPAddr, "HTTP_ADDR")
	intv(&c.VisMaxRows, "VIS_MAX_ROWS")

	intv(&c.JoinCountCap, "JOIN_COUNT_CAP")

	str(&c.EventsLogPath, "EVENTS_LOG_PATH")
	intv(&c.EventsLogMaxSizeMB, "EVENTS_LOG_MAX_SIZE_MB")
	intv(&c.EventsLogMaxBackups, "EVENTS_LOG_MAX_BACKUPS")
	str(&c.MetadataDir, "METADATA_DIR")
	str(&c.VectorStorePath, "VECTOR_STORE_PATH")
	str(&c.MongoURI, "MONGO_URI")
	str(&c.MongoDatabase, "MONGO_DATABASE")
	intv(&c.MongoTimeoutMs, "MONGO_TIMEOUT_MS")
	str(&c.LearnedFixStorePath, "LEARNED_FIX_STORE_PATH")
	str(&c.PostprocessRulesPath, "POSTPROCESS_RULES_PATH")
	str(&c.ChartRulesPath, "CHART_RULES_PATH")

	return c, nil
}

func (c *Config) LLMTimeout() time.Duration { return time.Duration(c.LLMTimeoutSec) * time.Second }
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMs) * time.Millisecond
}
func (c *Config) APIRequestTimeout() time.Duration {
	return time.Duration(c.APIRequestTimeoutSec) * time.Second
}
func (c *Config) MongoTimeout() time.Duration {
	return time.Duration(c.MongoTimeoutMs) * time.Millisecond
}

func lookup(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func str(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func intv(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func boolv(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}
