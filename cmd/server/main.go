// Command server boots the QueryLens HTTP surface: Core A (Text-to-SQL
// orchestration) and Core B (chart rule engine) behind the gin router built
// by internal/httpapi, wired from a single config.Config the way the
// teacher's cmd/server assembles its ReAct pipeline from one ConfigFile.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/sso312/querylens/internal/cache"
	"github.com/sso312/querylens/internal/chart"
	"github.com/sso312/querylens/internal/clarifier"
	"github.com/sso312/querylens/internal/config"
	"github.com/sso312/querylens/internal/docstore"
	"github.com/sso312/querylens/internal/embed"
	"github.com/sso312/querylens/internal/executor"
	"github.com/sso312/querylens/internal/httpapi"
	"github.com/sso312/querylens/internal/llm"
	"github.com/sso312/querylens/internal/logging"
	"github.com/sso312/querylens/internal/orchestrator"
	"github.com/sso312/querylens/internal/planner"
	"github.com/sso312/querylens/internal/postprocess"
	"github.com/sso312/querylens/internal/promptkit"
	"github.com/sso312/querylens/internal/retrieval"
	"github.com/sso312/querylens/internal/settings"
	"github.com/sso312/querylens/internal/sqlgen"
	"github.com/sso312/querylens/internal/translator"
)

func main() {
	cfg, err := config.Load(os.Getenv("QUERYLENS_ENV_FILE"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	events := logging.NewEventLogger(cfg.EventsLogPath, "querylens", cfg.EventsLogMaxSizeMB, cfg.EventsLogMaxBackups)

	kit, err := promptkit.New(promptkit.Default)
	if err != nil {
		log.Fatalf("build promptkit: %v", err)
	}

	modelNames := []string{cfg.EngineerModel, cfg.ExpertModel, cfg.PlannerModel, cfg.ClarifierModel, cfg.RepairModel}
	profiles := llm.LoadProfilesFromEnv(modelNames)
	llmClient := llm.NewLangchainClient(profiles, cfg.LLMTimeout())

	store, reindex := buildDocStore(cfg, events)

	embedder := embed.NewHashing(256)
	retriever := retrieval.New(store, embedder)

	clar := clarifier.New(clarifier.DefaultRules, llmClient, kit, cfg.ClarifierModel, cfg.DefaultScopeAutofillEnabled)
	trans := translator.New(llmClient, cfg.PlannerModel)
	plan := planner.New(llmClient, kit, cfg.PlannerModel)
	gen := sqlgen.New(llmClient, kit, cfg.MaxRetryAttempts)

	rules, err := postprocess.LoadRules(cfg.PostprocessRulesPath)
	if err != nil {
		log.Fatalf("load postprocess rules: %v", err)
	}

	fixes, err := executor.NewLearnedFixStore(cfg.LearnedFixStorePath, 5000)
	if err != nil {
		log.Fatalf("open learned-fix store: %v", err)
	}
	pool := executor.NewPool(func(userKey string) (executor.Backend, error) {
		return executor.NewSQLiteBackend(demoDBPath(cfg)), nil
	})
	repairMaxAttempts := cfg.SQLAutoRepairMaxAttempts
	if !cfg.SQLAutoRepairEnabled {
		repairMaxAttempts = 0
	}
	repair := executor.NewRepairLoop(pool, fixes, llmClient, kit, cfg.RepairModel, cfg.RowCap, repairMaxAttempts)

	catalog := loadSchemaCatalog(cfg)

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

	thresholds, err := chart.LoadThresholds(cfg.ChartRulesPath)
	if err != nil {
		log.Fatalf("load chart thresholds: %v", err)
	}
	charts := chart.NewRuleEngine(thresholds)

	settingsStore := buildSettingsStore(cfg)

	metaCache := cache.New()
	registerMetadataCache(metaCache, cfg)

	router := httpapi.NewRouter(httpapi.Deps{
		Config:       cfg,
		Orchestrator: orch,
		Charts:       charts,
		Pool:         pool,
		Settings:     settingsStore,
		Cache:        metaCache,
		Events:       events,
		Reindex:      reindex,
	})

	events.Info("server_start", map[string]any{"addr": cfg.HTTPAddr})
	if err := router.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func demoDBPath(cfg *config.Config) string {
	if cfg.VectorStorePath == "" {
		return "./data/demo.db"
	}
	return cfg.VectorStorePath + ".demo.db"
}

// buildDocStore opens the sqvect-backed vector store named in spec §3.1,
// falling back to an in-memory store when the on-disk index can't be
// opened (spec §7's Infrastructure fallback policy), and returns a
// ReindexFunc that reloads the metadata JSONL corpus into whichever store
// is live.
func buildDocStore(cfg *config.Config, events *logging.EventLogger) (docstore.Store, httpapi.ReindexFunc) {
	sqvectStore, err := docstore.OpenSqvectStore(cfg.VectorStorePath, 256)
	if err != nil {
		events.Warn("vector_store_unavailable", map[string]any{"error": err.Error()})
		mem := docstore.NewMemStore()
		reindex := func(ctx context.Context) (int, error) {
			docs, err := docstore.LoadJSONLDir(cfg.MetadataDir)
			if err != nil {
				return 0, err
			}
			mem.Add(docs...)
			return len(docs), nil
		}
		return mem, reindex
	}

	reindex := func(ctx context.Context) (int, error) {
		docs, err := docstore.LoadJSONLDir(cfg.MetadataDir)
		if err != nil {
			return 0, err
		}
		for _, d := range docs {
			if err := sqvectStore.Upsert(ctx, d); err != nil {
				return 0, err
			}
		}
		return len(docs), nil
	}
	return sqvectStore, reindex
}

func buildSettingsStore(cfg *config.Config) settings.Writer {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoTimeout())
	defer cancel()
	store, err := settings.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, "settings", cfg.MongoTimeout())
	if err != nil {
		log.Printf("settings store: mongo unavailable (%v), falling back to in-memory store", err)
		return settings.NewMemStore()
	}
	return store
}

// registerMetadataCache binds every kind httpapi's /admin/metadata/sync can
// invalidate to a loader, per spec §9's MetadataCache design note.
func registerMetadataCache(c *cache.MetadataCache, cfg *config.Config) {
	c.Register("schema_catalog", []string{cfg.MetadataDir + "/schema_catalog.json"}, func() (any, error) {
		return loadSchemaCatalog(cfg), nil
	})
	c.Register("join_graph", []string{cfg.MetadataDir + "/join_graph.json"}, func() (any, error) {
		data, err := os.ReadFile(cfg.MetadataDir + "/join_graph.json")
		if err != nil {
			if os.IsNotExist(err) {
				return map[string]any{}, nil
			}
			return nil, err
		}
		var graph map[string]any
		if err := json.Unmarshal(data, &graph); err != nil {
			return nil, err
		}
		return graph, nil
	})
	c.Register("postprocess_rules", []string{cfg.PostprocessRulesPath}, func() (any, error) {
		return postprocess.LoadRules(cfg.PostprocessRulesPath)
	})
	c.Register("chart_rules", []string{cfg.ChartRulesPath}, func() (any, error) {
		return chart.LoadThresholds(cfg.ChartRulesPath)
	})
	c.Register("doc_corpus", []string{cfg.MetadataDir}, func() (any, error) {
		return docstore.LoadJSONLDir(cfg.MetadataDir)
	})
}

// defaultCatalog is the fallback MIMIC-style table catalog used when no
// schema_catalog.json is present on disk, covering the tables the
// postprocess/policy packages' own examples reference (ADMISSIONS,
// ICUSTAYS, PATIENTS, ...).
var defaultCatalog = []string{
	"ADMISSIONS", "PATIENTS", "ICUSTAYS", "DIAGNOSES_ICD", "PROCEDURES_ICD",
	"LABEVENTS", "CHARTEVENTS", "PRESCRIPTIONS", "D_ICD_DIAGNOSES", "D_ICD_PROCEDURES",
	"D_LABITEMS", "D_ITEMS", "SERVICES", "TRANSFERS", "CALLOUT",
}

// loadSchemaCatalog reads the flat table-name list at
// <metadataDir>/schema_catalog.json, tolerating a missing file the same way
// postprocess.LoadRules and chart.LoadThresholds tolerate a missing rules
// file.
func loadSchemaCatalog(cfg *config.Config) []string {
	path := cfg.MetadataDir + "/schema_catalog.json"
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultCatalog
	}
	var tables []string
	if err := json.Unmarshal(data, &tables); err != nil {
		fmt.Fprintf(os.Stderr, "querylens: parse %s: %v; using built-in catalog\n", path, err)
		return defaultCatalog
	}
	return tables
}
