// Command querylens-cli is a one-shot pipeline evaluator, in the idiom of
// the teacher's cmd/eval: parse flags, run a single question through Core A
// end to end against a demo SQLite backend, print the result as JSON, and
// exit 0 on success or 1 on data-missing/generation failure, without
// standing up the gin HTTP surface cmd/server boots.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sso312/querylens/internal/clarifier"
	"github.com/sso312/querylens/internal/config"
	"github.com/sso312/querylens/internal/docstore"
	"github.com/sso312/querylens/internal/embed"
	"github.com/sso312/querylens/internal/executor"
	"github.com/sso312/querylens/internal/llm"
	"github.com/sso312/querylens/internal/logging"
	"github.com/sso312/querylens/internal/orchestrator"
	"github.com/sso312/querylens/internal/planner"
	"github.com/sso312/querylens/internal/postprocess"
	"github.com/sso312/querylens/internal/promptkit"
	"github.com/sso312/querylens/internal/retrieval"
	"github.com/sso312/querylens/internal/sqlgen"
	"github.com/sso312/querylens/internal/translator"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("querylens-cli", flag.ContinueOnError)
	question := fs.String("question", "", "natural-language question to run through the pipeline (required)")
	userKey := fs.String("user", "cli", "user key for the per-user connection pool and learned-fix scoping")
	dbPath := fs.String("db", "./data/demo.db", "path to the demo SQLite database the generated SQL runs against")
	scopeFlag := fs.String("scope", "", "comma-separated table scope override; empty means every catalog table")
	envFile := fs.String("env", "", "path to a .env file; defaults to QUERYLENS_ENV_FILE or the process environment")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *question == "" {
		fmt.Fprintln(os.Stderr, "querylens-cli: -question is required")
		return 1
	}

	cfg, err := config.Load(firstNonEmpty(*envFile, os.Getenv("QUERYLENS_ENV_FILE")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "querylens-cli: load config: %v\n", err)
		return 1
	}

	events := logging.NewEventLogger(cfg.EventsLogPath, "querylens-cli", cfg.EventsLogMaxSizeMB, cfg.EventsLogMaxBackups)

	kit, err := promptkit.New(promptkit.Default)
	if err != nil {
		fmt.Fprintf(os.Stderr, "querylens-cli: build promptkit: %v\n", err)
		return 1
	}

	modelNames := []string{cfg.EngineerModel, cfg.ExpertModel, cfg.PlannerModel, cfg.ClarifierModel, cfg.RepairModel}
	profiles := llm.LoadProfilesFromEnv(modelNames)
	llmClient := llm.NewLangchainClient(profiles, cfg.LLMTimeout())

	store := docstore.NewMemStore()
	if docs, loadErr := docstore.LoadJSONLDir(cfg.MetadataDir); loadErr == nil {
		store.Add(docs...)
	} else {
		events.Warn("metadata_load_failed", map[string]any{"error": loadErr.Error()})
	}

	retriever := retrieval.New(store, embed.NewHashing(256))
	clar := clarifier.New(clarifier.DefaultRules, llmClient, kit, cfg.ClarifierModel, cfg.DefaultScopeAutofillEnabled)
	trans := translator.New(llmClient, cfg.PlannerModel)
	plan := planner.New(llmClient, kit, cfg.PlannerModel)
	gen := sqlgen.New(llmClient, kit, cfg.MaxRetryAttempts)

	rules, err := postprocess.LoadRules(cfg.PostprocessRulesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "querylens-cli: load postprocess rules: %v\n", err)
		return 1
	}

	fixes, err := executor.NewLearnedFixStore(cfg.LearnedFixStorePath, 5000)
	if err != nil {
		fmt.Fprintf(os.Stderr, "querylens-cli: open learned-fix store: %v\n", err)
		return 1
	}
	pool := executor.NewPool(func(string) (executor.Backend, error) {
		return executor.NewSQLiteBackend(*dbPath), nil
	})
	repairMaxAttempts := cfg.SQLAutoRepairMaxAttempts
	if !cfg.SQLAutoRepairEnabled {
		repairMaxAttempts = 0
	}
	repair := executor.NewRepairLoop(pool, fixes, llmClient, kit, cfg.RepairModel, cfg.RowCap, repairMaxAttempts)

	catalog := loadCatalog(cfg)

	orch := orchestrator.New(orchestrator.Dependencies{
		Clarifier:  clar,
		Translator: trans,
		Retriever:  retriever,
		Planner:    plan,
		Generator:  gen,
		PostRules:  rules,
		RepairLoop: repair,
		Catalog:    catalog,
	}, cfg)

	scope := catalog
	if *scopeFlag != "" {
		scope = strings.Split(*scopeFlag, ",")
	}

	ctx := context.Background()
	result, err := orch.Run(ctx, *userKey, *question, nil, scope, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "querylens-cli: pipeline error: %v\n", err)
		return 1
	}

	output := map[string]any{
		"mode":          result.Mode,
		"question":      result.Question,
		"final_sql":     result.Final.FinalSQL,
		"assumptions":   result.Assumptions,
		"planner":       result.Planner,
		"clarification": result.Clarification,
	}
	if result.Execution != nil {
		output["execution"] = result.Execution
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "querylens-cli: encode result: %v\n", err)
		return 1
	}

	if result.Mode == orchestrator.ModeClarify {
		return 1
	}
	if result.Execution != nil && !result.Execution.Succeeded {
		return 1
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var defaultCatalog = []string{
	"ADMISSIONS", "PATIENTS", "ICUSTAYS", "DIAGNOSES_ICD", "PROCEDURES_ICD",
	"LABEVENTS", "CHARTEVENTS", "PRESCRIPTIONS", "D_ICD_DIAGNOSES", "D_ICD_PROCEDURES",
	"D_LABITEMS", "D_ITEMS", "SERVICES", "TRANSFERS", "CALLOUT",
}

// loadCatalog mirrors cmd/server's loadSchemaCatalog: read
// <metadataDir>/schema_catalog.json, falling back to the built-in MIMIC
// table list when the file is absent or unparsable.
func loadCatalog(cfg *config.Config) []string {
	path := cfg.MetadataDir + "/schema_catalog.json"
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultCatalog
	}
	var tables []string
	if err := json.Unmarshal(data, &tables); err != nil {
		fmt.Fprintf(os.Stderr, "querylens-cli: parse %s: %v; using built-in catalog\n", path, err)
		return defaultCatalog
	}
	return tables
}
