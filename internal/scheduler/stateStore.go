package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/akolanti/ComplianceGPT/internal/data/redisStore"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/schedulerModel"
)

// FileStateStore keeps the state as one JSON document. Writes go to a temp
// file in the same directory and are renamed over the old one.
type FileStateStore struct {
	path string
}

func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

func (f *FileStateStore) Load(context.Context) (schedulerModel.State, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return schedulerModel.State{}, false, nil
	}
	if err != nil {
		return schedulerModel.State{}, false, errorModel.Storage("load scheduler state", err)
	}
	var state schedulerModel.State
	if err := json.Unmarshal(data, &state); err != nil {
		return schedulerModel.State{}, false, fmt.Errorf("%w: %s: %v", errorModel.ErrCorruptState, f.path, err)
	}
	return state, true, nil
}

func (f *FileStateStore) Save(_ context.Context, state schedulerModel.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errorModel.Storage("save scheduler state", err)
	}

	tmp, err := os.CreateTemp(dir, ".scheduler-state-*")
	if err != nil {
		return errorModel.Storage("save scheduler state", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errorModel.Storage("save scheduler state", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errorModel.Storage("save scheduler state", err)
	}
	if err := tmp.Close(); err != nil {
		return errorModel.Storage("save scheduler state", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errorModel.Storage("save scheduler state", err)
	}
	return nil
}

const stateKey = "scheduler:state"

type RedisStateStore struct {
	store *redisStore.Store
}

func NewRedisStateStore(store *redisStore.Store) *RedisStateStore {
	return &RedisStateStore{store: store}
}

func (r *RedisStateStore) Load(ctx context.Context) (schedulerModel.State, bool, error) {
	raw, err := r.store.Get(ctx, stateKey)
	if r.store.IsNil(err) {
		return schedulerModel.State{}, false, nil
	}
	if err != nil {
		return schedulerModel.State{}, false, errorModel.Storage("load scheduler state", err)
	}
	var state schedulerModel.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return schedulerModel.State{}, false, fmt.Errorf("%w: %s: %v", errorModel.ErrCorruptState, stateKey, err)
	}
	return state, true, nil
}

func (r *RedisStateStore) Save(ctx context.Context, state schedulerModel.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, stateKey, data, 0); err != nil {
		return errorModel.Storage("save scheduler state", err)
	}
	return nil
}
