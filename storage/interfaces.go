package storage

import "github.com/modelgate/modelgate/types"

// LogReader queries stored prediction logs
type LogReader interface {
	EarliestLogs(modelID string, n int) ([]types.PredictionLog, error)
	LatestLogs(modelID string, n int) ([]types.PredictionLog, error)
	AllLogs(modelID string) ([]types.PredictionLog, error)
	CountLogs(modelID string) (int, error)
}

// LogWriter appends prediction logs
type LogWriter interface {
	AppendPredictionLog(log types.PredictionLog) error
	AppendPredictionLogBatch(modelID string, logs []types.PredictionLog) error
}

// DriftWriter persists drift evaluation runs
type DriftWriter interface {
	AppendDriftMetrics(metrics []types.DriftMetric) error
}

// DriftReader queries drift history
type DriftReader interface {
	LatestDriftMetrics(modelID string, limit int) ([]types.DriftMetric, error)
}

// FairnessWriter persists fairness evaluation runs
type FairnessWriter interface {
	AppendFairnessMetrics(metrics []types.FairnessMetric) error
}

// FairnessReader queries fairness history
type FairnessReader interface {
	LatestFairnessMetric(modelID string) (types.FairnessMetric, bool, error)
	LatestFairnessMetrics(modelID string, limit int) ([]types.FairnessMetric, error)
}

// RiskWriter persists MRI snapshots
type RiskWriter interface {
	AppendRiskEntry(entry types.RiskEntry) error
}

// RiskReader queries MRI history
type RiskReader interface {
	LatestRiskEntry(modelID string) (types.RiskEntry, bool, error)
	RiskHistory(modelID string, limit int) ([]types.RiskEntry, error)
}

// PolicyWriter mutates governance policies
type PolicyWriter interface {
	PutPolicy(policy types.Policy) (types.Policy, error)
	DeletePolicy(policyID string) error
}

// PolicyReader resolves the active governance policy
type PolicyReader interface {
	ActivePolicy() (types.Policy, error)
	GetPolicy(policyID string) (types.Policy, error)
	ListPolicies() ([]types.Policy, error)
}

// ModelReader queries the model registry
type ModelReader interface {
	GetModel(modelID string) (types.Model, error)
	ModelExists(modelID string) bool
	ListModels() ([]types.Model, error)
}

// ModelWriter mutates the registry's status cells
type ModelWriter interface {
	PutModel(model types.Model) error
	SetModelStatus(modelID, status string) error
	SetDeploymentStatus(modelID, deploymentStatus string) error
	MarkDeployed(modelID string) error
}

// ModelLocker serializes per-model read-modify-write sections
type ModelLocker interface {
	WithModelLock(modelID string, fn func() error) error
}

// GovernanceStore is everything the evaluator and gate need
type GovernanceStore interface {
	ModelReader
	ModelWriter
	ModelLocker
	PolicyReader
	RiskReader
	FairnessReader
}
