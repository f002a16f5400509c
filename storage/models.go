package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelgate/modelgate/types"
	"go.etcd.io/bbolt"
)

// PutModel creates or replaces a model record
func (s *Store) PutModel(model types.Model) error {
	if err := model.Validate(); err != nil {
		return fmt.Errorf("invalid model: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	model.UpdatedAt = time.Now().UTC()
	if model.Status == "" {
		model.Status = types.StatusDraft
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		value, err := json.Marshal(model)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketModels).Put([]byte(model.ID), value)
	})
	if err != nil {
		return fmt.Errorf("failed to put model %s: %w", model.ID, err)
	}

	s.index.ReplaceOrInsert(&modelEntry{model: model})
	return nil
}

// GetModel returns a model by ID
func (s *Store) GetModel(modelID string) (types.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, found := s.index.Get(&modelEntry{model: types.Model{ID: modelID}})
	if !found {
		return types.Model{}, fmt.Errorf("model %s: %w", modelID, ErrModelNotFound)
	}
	return entry.model, nil
}

// ModelExists reports whether a model is registered
func (s *Store) ModelExists(modelID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, found := s.index.Get(&modelEntry{model: types.Model{ID: modelID}})
	return found
}

// ListModels returns all registered models ordered by ID
func (s *Store) ListModels() ([]types.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var models []types.Model
	s.index.Ascend(func(entry *modelEntry) bool {
		models = append(models, entry.model)
		return true
	})
	return models, nil
}

// SetModelStatus writes the governance status onto a model. Callers that
// evaluate-then-write must hold the model lock via WithModelLock.
func (s *Store) SetModelStatus(modelID, status string) error {
	return s.updateModel(modelID, func(m *types.Model) {
		m.Status = status
	})
}

// SetDeploymentStatus writes the deployment status onto a model
func (s *Store) SetDeploymentStatus(modelID, deploymentStatus string) error {
	return s.updateModel(modelID, func(m *types.Model) {
		m.DeploymentStatus = deploymentStatus
	})
}

// MarkDeployed transitions a model to deployed in one update
func (s *Store) MarkDeployed(modelID string) error {
	return s.updateModel(modelID, func(m *types.Model) {
		m.Status = types.StatusDeployed
		m.DeploymentStatus = types.DeploymentDeployed
	})
}

func (s *Store) updateModel(modelID string, mutate func(*types.Model)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, found := s.index.Get(&modelEntry{model: types.Model{ID: modelID}})
	if !found {
		return fmt.Errorf("model %s: %w", modelID, ErrModelNotFound)
	}

	model := entry.model
	mutate(&model)
	model.UpdatedAt = time.Now().UTC()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		value, err := json.Marshal(model)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketModels).Put([]byte(model.ID), value)
	})
	if err != nil {
		return fmt.Errorf("failed to update model %s: %w", modelID, err)
	}

	s.index.ReplaceOrInsert(&modelEntry{model: model})
	return nil
}
