package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-voicepipe/internal/analyze"
	"github.com/alnah/go-voicepipe/internal/archive"
	"github.com/alnah/go-voicepipe/internal/catalog"
	"github.com/alnah/go-voicepipe/internal/config"
	"github.com/alnah/go-voicepipe/internal/kb"
	"github.com/alnah/go-voicepipe/internal/llm"
	"github.com/alnah/go-voicepipe/internal/monitor"
	"github.com/alnah/go-voicepipe/internal/orchestrate"
	"github.com/alnah/go-voicepipe/internal/parse"
	"github.com/alnah/go-voicepipe/internal/pipeline"
	"github.com/alnah/go-voicepipe/internal/route"
	"github.com/alnah/go-voicepipe/internal/session"
	"github.com/alnah/go-voicepipe/internal/transcribe"
)

// Collection ids have no defaults; a run cannot start without them.
var requiredCollectionKeys = []string{
	"kb.collections.tasks",
	"kb.collections.notes",
	"kb.collections.research",
	"kb.collections.projects",
}

// runner couples the orchestrator with the CPU sampler feeding its
// admission gate. The sampler goroutine lives exactly as long as the run.
type runner struct {
	orch *orchestrate.Orchestrator
	cpu  *monitor.CPU
}

// Run implements Runner.
func (r *runner) Run(ctx context.Context) (orchestrate.Summary, error) {
	sampleCtx, stop := context.WithCancel(ctx)
	defer stop()
	go r.cpu.Start(sampleCtx)

	return r.orch.Run(ctx)
}

// buildRunner assembles the full orchestrator graph from configuration:
// journal, archive store, transcription chain, transcript pipeline, and
// the CPU admission gate.
func buildRunner(cfg *config.Store, getenv func(string) string, root string, opts orchestrate.Options) (*runner, error) {
	journal, err := session.Open(filepath.Join(root, ".cache", "session_state.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to open session journal: %w", err)
	}
	archiveStore := archive.NewStore(filepath.Join(root, cfg.String("archive.dir_name", archive.DirName)))

	svc, err := buildTranscriber(cfg, getenv)
	if err != nil {
		return nil, err
	}

	adapter, err := buildKB(cfg, getenv)
	if err != nil {
		return nil, err
	}
	proc, err := buildPipeline(cfg, getenv, adapter, filepath.Join(root, "processed"), root, opts.DryRun)
	if err != nil {
		return nil, err
	}

	cpu := monitor.NewCPU(
		monitor.WithSoftCap(cfg.Float("monitor.cpu_soft_cap", monitor.DefaultSoftCapPct)),
		monitor.WithInterval(cfg.Duration("monitor.sample_interval_seconds", monitor.DefaultInterval)),
	)

	orch := orchestrate.New(opts, orchestrate.Deps{
		Transcriber: svc,
		Processor:   proc,
		Verifier:    adapter,
		Journal:     journal,
		Archive:     archiveStore,
		Admitter:    cpu,
	})
	return &runner{orch: orch, cpu: cpu}, nil
}

// buildProcessor assembles the standalone pipeline for the process
// command. Sidecars land under outDir; the catalog cache shares the
// project root's .cache directory.
func buildProcessor(cfg *config.Store, getenv func(string) string, outDir string, dryRun bool) (*pipeline.Pipeline, error) {
	adapter, err := buildKB(cfg, getenv)
	if err != nil {
		return nil, err
	}
	root := config.ExpandPath(cfg.String("paths.root", "~/voicepipe"))
	return buildPipeline(cfg, getenv, adapter, outDir, root, dryRun)
}

// buildPipeline wires parser, analyzers, router, and the record store
// into one transcript pipeline.
func buildPipeline(cfg *config.Store, getenv func(string) string, adapter *kb.Adapter, outDir, root string, dryRun bool) (*pipeline.Pipeline, error) {
	client, err := buildLLM(cfg, getenv)
	if err != nil {
		return nil, err
	}

	parser := parse.New(
		parse.WithMaxBytes(cfg.Int("validate.max_transcript_bytes", 1<<20)),
	)
	analyzer := &analyze.Dispatcher{
		Task: analyze.NewTaskAnalyzer(client, cfg),
		Note: analyze.NewNoteAnalyzer(client, cfg,
			analyze.WithWordThreshold(cfg.Int("process.word_threshold", 800))),
	}
	router, err := buildRouter(cfg, adapter, root)
	if err != nil {
		return nil, err
	}

	var popts []pipeline.Option
	if dryRun {
		popts = append(popts, pipeline.WithDryRun(true))
	}
	return pipeline.New(parser, analyzer, router, adapter, outDir, popts...), nil
}

// buildKB creates the knowledge-base client and adapter. Collection ids
// are required configuration; the token comes from the environment
// variable named by kb.token_env.
func buildKB(cfg *config.Store, getenv func(string) string) (*kb.Adapter, error) {
	tokenEnv := cfg.String("kb.token_env", "NOTION_TOKEN")
	token := getenv(tokenEnv)
	if token == "" {
		return nil, fmt.Errorf("%w (set it with: export %s=...)", ErrKBTokenMissing, tokenEnv)
	}

	for _, key := range requiredCollectionKeys {
		if _, err := cfg.RequireString(key); err != nil {
			return nil, err
		}
	}
	var collections kb.Collections
	if err := cfg.Decode("kb.collections", &collections); err != nil {
		return nil, fmt.Errorf("failed to decode kb.collections: %w", err)
	}
	var schema kb.Schema
	if err := cfg.Decode("kb.properties", &schema); err != nil {
		return nil, fmt.Errorf("failed to decode kb.properties: %w", err)
	}

	client, err := kb.NewClient(token,
		kb.WithBaseURL(cfg.String("kb.base_url", kb.DefaultBaseURL)),
		kb.WithVersion(cfg.String("kb.version", kb.DefaultVersion)),
		kb.WithHTTPTimeout(cfg.Duration("kb.timeout_seconds", 30*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create record store client: %w", err)
	}

	return kb.NewAdapter(client, collections,
		kb.WithSchema(schema),
		kb.WithBlockLimit(cfg.Int("kb.block_limit", kb.DefaultBlockLimit)),
	), nil
}

// buildLLM creates the analysis client. A configured base_url selects
// the OpenAI-compatible HTTP client; otherwise the SDK client is used.
func buildLLM(cfg *config.Store, getenv func(string) string) (llm.Client, error) {
	keyEnv := cfg.String("llm.api_key_env", "OPENAI_API_KEY")
	apiKey := getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w (set it with: export %s=sk-...)", ErrAPIKeyMissing, keyEnv)
	}

	model := cfg.String("llm.model", "gpt-4o-mini")
	maxTokens := cfg.Int("llm.max_tokens", 1500)
	rpm := cfg.Int("llm.requests_per_minute", 30)

	if baseURL := cfg.String("llm.base_url", ""); baseURL != "" {
		compat, err := llm.NewCompatClient(apiKey, baseURL,
			llm.WithCompatModel(model),
			llm.WithCompatMaxTokens(maxTokens),
			llm.WithCompatHTTPTimeout(cfg.Duration("llm.timeout_seconds", 60*time.Second)),
			llm.WithCompatRequestsPerMinute(rpm),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		return compat, nil
	}

	client := openai.NewClient(apiKey)
	return llm.NewOpenAIClient(client,
		llm.WithModel(model),
		llm.WithMaxTokens(maxTokens),
		llm.WithRequestsPerMinute(rpm),
	), nil
}

// buildRouter wires the four deciders. Routing rules come straight from
// the configuration tree; the project decider reads the catalog backed
// by the adapter with a disk cache under the project root.
func buildRouter(cfg *config.Store, adapter *kb.Adapter, root string) (*route.Router, error) {
	var fallback []catalog.Entry
	if err := cfg.Decode("projects.fallback", &fallback); err != nil {
		return nil, fmt.Errorf("failed to decode projects.fallback: %w", err)
	}
	cat := catalog.New(adapter,
		catalog.WithCachePath(filepath.Join(root, ".cache", "project_cache.json")),
		catalog.WithFreshness(time.Duration(cfg.Int("catalog.freshness_minutes", 60))*time.Minute),
		catalog.WithThreshold(cfg.Float("catalog.threshold", catalog.DefaultThreshold)),
		catalog.WithFallback(fallback),
	)

	var durations route.DurationRules
	if err := cfg.Decode("durations", &durations); err != nil {
		return nil, fmt.Errorf("failed to decode durations: %w", err)
	}
	var tags route.TagRules
	if err := cfg.Decode("patterns", &tags); err != nil {
		return nil, fmt.Errorf("failed to decode patterns: %w", err)
	}

	return route.New(
		route.NewProjectDecider(cat),
		route.NewDurationDecider(durations),
		route.NewTagDecider(tags),
		route.NewIconDecider(cfg.StringMap("icons.map"), cfg.String("icons.default", "📄")),
	), nil
}

// buildTranscriber assembles the backend failover chain. A missing cloud
// API key is not an error here: the cloud backend just reports
// unavailable and the chain falls through to the local command.
func buildTranscriber(cfg *config.Store, getenv func(string) string) (*transcribe.Service, error) {
	apiKey := getenv(cfg.String("transcribe.cloud.api_key_env", "OPENAI_API_KEY"))
	cloud := transcribe.NewCloudBackend(openai.NewClient(apiKey), apiKey,
		transcribe.WithCloudModel(cfg.String("transcribe.cloud.model", transcribe.DefaultCloudModel)),
		transcribe.WithCloudLanguage(cfg.String("transcribe.cloud.language", "")),
		transcribe.WithCloudMaxFileBytes(int64(cfg.Int("transcribe.cloud.max_file_mb", 25))*1024*1024),
	)
	local := transcribe.NewLocalBackend(cfg.String("transcribe.local.command", transcribe.DefaultLocalCommand),
		transcribe.WithLocalModel(cfg.String("transcribe.local.model_path", "")),
		transcribe.WithLocalMaxFileBytes(int64(cfg.Int("transcribe.local.max_file_mb", 0))*1024*1024),
	)

	backends, err := transcribe.Chain(cfg.String("transcribe.backend", transcribe.ModeAuto), cloud, local)
	if err != nil {
		return nil, err
	}
	return transcribe.NewService(backends,
		transcribe.WithTimeoutFloor(cfg.Duration("transcribe.cloud.timeout_floor", 20*time.Minute)),
		transcribe.WithTimeoutFactor(cfg.Float("transcribe.cloud.timeout_factor", 0.5)),
	), nil
}
