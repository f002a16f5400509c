package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/modelgate/modelgate/types"
	"go.etcd.io/bbolt"
)

// PutPolicy creates or replaces a governance policy. Activating a policy
// deactivates every other policy in the same transaction, so at most one
// policy is ever active.
func (s *Store) PutPolicy(policy types.Policy) (types.Policy, error) {
	if err := policy.Validate(); err != nil {
		return types.Policy{}, fmt.Errorf("invalid policy: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = time.Now().UTC()
	}
	policy.UpdatedAt = time.Now().UTC()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPolicies)

		if policy.Active {
			if err := deactivateOthers(bucket, policy.ID); err != nil {
				return err
			}
		}

		value, err := json.Marshal(policy)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(policy.ID), value)
	})
	if err != nil {
		return types.Policy{}, &TransactionError{Op: "put_policy", Err: err}
	}

	return policy, nil
}

func deactivateOthers(bucket *bbolt.Bucket, keepID string) error {
	type update struct {
		key   []byte
		value []byte
	}
	var updates []update

	err := bucket.ForEach(func(k, v []byte) error {
		if string(k) == keepID {
			return nil
		}
		var p types.Policy
		if err := json.Unmarshal(v, &p); err != nil {
			return fmt.Errorf("corrupt policy record: %w", err)
		}
		if !p.Active {
			return nil
		}
		p.Active = false
		p.UpdatedAt = time.Now().UTC()
		value, err := json.Marshal(p)
		if err != nil {
			return err
		}
		updates = append(updates, update{key: append([]byte(nil), k...), value: value})
		return nil
	})
	if err != nil {
		return err
	}

	for _, u := range updates {
		if err := bucket.Put(u.key, u.value); err != nil {
			return err
		}
	}
	return nil
}

// GetPolicy returns a policy by ID
func (s *Store) GetPolicy(policyID string) (types.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var policy types.Policy
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketPolicies).Get([]byte(policyID))
		if value == nil {
			return fmt.Errorf("policy %s: %w", policyID, ErrPolicyNotFound)
		}
		return json.Unmarshal(value, &policy)
	})
	return policy, err
}

// DeletePolicy removes a policy by ID
func (s *Store) DeletePolicy(policyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPolicies)
		if bucket.Get([]byte(policyID)) == nil {
			return fmt.Errorf("policy %s: %w", policyID, ErrPolicyNotFound)
		}
		return bucket.Delete([]byte(policyID))
	})
}

// ListPolicies returns all policies sorted by name
func (s *Store) ListPolicies() ([]types.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var policies []types.Policy
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPolicies).ForEach(func(_, v []byte) error {
			var p types.Policy
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("corrupt policy record: %w", err)
			}
			policies = append(policies, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })
	return policies, nil
}

// ActivePolicy returns the single active policy, or ErrNoActivePolicy
func (s *Store) ActivePolicy() (types.Policy, error) {
	policies, err := s.ListPolicies()
	if err != nil {
		return types.Policy{}, err
	}
	for _, p := range policies {
		if p.Active {
			return p, nil
		}
	}
	return types.Policy{}, ErrNoActivePolicy
}
