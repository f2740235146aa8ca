package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/llm"
	"github.com/Veraticus/tally/internal/ml"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/storage"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(config.DatabasePath())
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// app bundles the engine with the resources it holds open.
type app struct {
	store  *storage.SQLiteStorage
	text   *llm.LLMClassifier
	engine *engine.Engine
}

func (a *app) Close() {
	if a.text != nil {
		if err := a.text.Close(); err != nil {
			slog.Warn("Failed to close text classifier", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

// initApp opens storage and builds an engine from configuration.
func initApp(ctx context.Context) (*app, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}

	a, err := newApp(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func newApp(ctx context.Context, store *storage.SQLiteStorage) (*app, error) {
	engineCfg, err := config.LoadEngineConfig()
	if err != nil {
		return nil, err
	}
	llmCfg, err := config.LoadLLMConfig()
	if err != nil {
		return nil, err
	}
	modelCfg, err := config.LoadModelConfig()
	if err != nil {
		return nil, err
	}

	var blobs service.ModelBlobStore = store
	if modelCfg.Store == config.ModelStoreFile {
		files, err := storage.NewFileBlobStore(modelCfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open model store: %w", err)
		}
		blobs = files
	}

	classifier := ml.NewClassifier(store, blobs, ml.DefaultConfig())
	if err := classifier.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	text, err := llm.NewFromConfig(llmCfg)
	if err != nil {
		return nil, err
	}

	return &app{
		store:  store,
		text:   text,
		engine: engine.New(store, text, classifier, engineCfg),
	}, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid transaction id %q", common.ErrValidation, s)
	}
	return id, nil
}

func parseIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := parseID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no transaction ids given", common.ErrValidation)
	}
	return ids, nil
}

// resolveCategory accepts a category id or name. An empty value means no
// category.
func resolveCategory(ctx context.Context, store service.CategoryStore, value string) (*int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		category, err := store.GetCategoryByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("category %d: %w", id, err)
		}
		return &category.ID, nil
	}

	category, err := store.GetCategoryByName(ctx, value)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown category %q", common.ErrNotFound, value)
	}
	if err != nil {
		return nil, err
	}
	return &category.ID, nil
}

func resolveAccount(ctx context.Context, store service.AccountStore, value string) (*model.Account, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%w: --account is required", common.ErrValidation)
	}

	accounts, err := store.GetAccounts(ctx)
	if err != nil {
		return nil, err
	}
	id, idErr := strconv.ParseInt(value, 10, 64)
	for i := range accounts {
		if (idErr == nil && accounts[i].ID == id) || strings.EqualFold(accounts[i].Name, value) {
			return &accounts[i], nil
		}
	}
	return nil, fmt.Errorf("%w: unknown account %q", common.ErrNotFound, value)
}
