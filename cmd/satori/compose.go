package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kraklabs/satori/internal/callgraph"
	"github.com/kraklabs/satori/internal/capability"
	satoriconfig "github.com/kraklabs/satori/internal/config"
	"github.com/kraklabs/satori/internal/embedding"
	"github.com/kraklabs/satori/internal/errs"
	"github.com/kraklabs/satori/internal/fingerprint"
	"github.com/kraklabs/satori/internal/index"
	"github.com/kraklabs/satori/internal/search"
	"github.com/kraklabs/satori/internal/snapshot"
	"github.com/kraklabs/satori/internal/syncmgr"
	"github.com/kraklabs/satori/internal/toolserver"
	"github.com/kraklabs/satori/internal/vectorstore"
)

// app bundles the fully-wired service stack: config, vector store,
// snapshot, index orchestrator, sync manager, search engine, call-graph
// sidecar, and the tool dispatcher built on top of all of them. This is
// the composition root both "mcp" mode and one-shot tool calls share.
type app struct {
	cfg        *satoriconfig.Config
	caps       capability.Capabilities
	store      vectorstore.Store
	snapshot   *snapshot.Store
	index      *index.Manager
	sync       *syncmgr.Manager
	search     *search.Engine
	callgraph  *callgraph.Manager
	dispatcher *toolserver.Dispatcher
}

func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := satoriconfig.LoadConfig(configPath)
	if err != nil {
		if ue, ok := errs.AsUserError(err); ok {
			fmt.Fprintln(os.Stderr, ue.Format(false))
		}
		cfg = satoriconfig.DefaultConfig()
	}

	embedder, err := embedding.NewProvider(embedding.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, err
	}

	fp := fingerprint.Fingerprint{
		EmbeddingProvider:   mapEmbeddingProvider(cfg.Embedding.Provider),
		EmbeddingModel:      embedder.Model(),
		EmbeddingDimension:  embedder.Dimensions(),
		VectorStoreProvider: mapVectorStoreProvider(cfg.VectorStore.Provider),
		SchemaVersion:       cfg.Indexing.SchemaVersion,
	}

	store, err := openVectorStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errs.NewInternalError("Cannot determine home directory", err.Error(), "Set HOME explicitly")
	}
	contextDir := filepath.Join(home, ".context")
	if err := os.MkdirAll(contextDir, 0o755); err != nil {
		return nil, errs.NewConfigError("Cannot create state directory", contextDir, "Check permissions on $HOME", err)
	}

	snap, err := snapshot.NewStore(filepath.Join(contextDir, "mcp-codebase-snapshot.json"), fp)
	if err != nil {
		return nil, err
	}

	idx := index.New(snap, store, embedder)
	sm := syncmgr.New(idx, filepath.Join(contextDir, "merkle"))
	idx.SetSyncManager(sm)

	cg := callgraph.New(filepath.Join(contextDir, "call-graph"))
	idx.SetCallGraphRebuilder(cg.RebuildForCodebase)

	caps := capability.Resolve(capability.Inputs{
		EmbeddingProvider: fp.EmbeddingProvider,
		MilvusEndpoint:    cfg.VectorStore.Endpoint,
		MilvusAPIToken:    cfg.VectorStore.APIToken,
		VoyageAPIKey:      cfg.Reranker.VoyageAPIKey,
	})

	var reranker search.Reranker
	if cfg.Reranker.VoyageAPIKey != "" {
		reranker = embedding.NewVoyageReranker(cfg.Reranker.VoyageAPIKey)
	}

	eng := search.New(store, embedder, sm, snap, fp, caps, reranker)
	dispatcher := toolserver.New(idx, eng, cg, snap)

	return &app{
		cfg: cfg, caps: caps, store: store, snapshot: snap,
		index: idx, sync: sm, search: eng, callgraph: cg, dispatcher: dispatcher,
	}, nil
}

func openVectorStore(ctx context.Context, cfg *satoriconfig.Config) (vectorstore.Store, error) {
	switch cfg.VectorStore.Provider {
	case "milvus", "zilliz":
		provider := fingerprint.VectorStoreMilvus
		if cfg.VectorStore.Provider == "zilliz" {
			provider = fingerprint.VectorStoreZilliz
		}
		return vectorstore.OpenRemote(ctx, vectorstore.RemoteConfig{
			Address:  cfg.VectorStore.Endpoint,
			APIToken: cfg.VectorStore.APIToken,
			Provider: provider,
		})
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errs.NewInternalError("Cannot determine home directory", err.Error(), "Set HOME explicitly")
		}
		return vectorstore.OpenSQLiteVec(filepath.Join(home, ".context", "vectors.db"))
	}
}

func mapEmbeddingProvider(provider string) fingerprint.EmbeddingProvider {
	switch provider {
	case "openai":
		return fingerprint.ProviderOpenAI
	case "voyageai":
		return fingerprint.ProviderVoyageAI
	case "gemini":
		return fingerprint.ProviderGemini
	default:
		return fingerprint.ProviderOllama
	}
}

func mapVectorStoreProvider(provider string) fingerprint.VectorStoreProvider {
	if provider == "zilliz" {
		return fingerprint.VectorStoreZilliz
	}
	return fingerprint.VectorStoreMilvus
}
