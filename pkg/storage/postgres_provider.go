package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/pyrex41/reelflow/pkg/models"
)

// PostgreSQLProvider implements the StorageProvider interface using PostgreSQL
type PostgreSQLProvider struct {
	db            *sql.DB
	pipelineStore *PostgreSQLPipelineStore
	runStore      *PostgreSQLRunStore
}

// PostgreSQLProviderConfig contains configuration for the PostgreSQL provider
type PostgreSQLProviderConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewPostgreSQLProvider creates a new PostgreSQL storage provider
func NewPostgreSQLProvider(config PostgreSQLProviderConfig) (*PostgreSQLProvider, error) {
	if config.Port == 0 {
		config.Port = 5432
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	provider := &PostgreSQLProvider{db: db}
	provider.pipelineStore = &PostgreSQLPipelineStore{db: db}
	provider.runStore = &PostgreSQLRunStore{db: db}

	return provider, nil
}

// Initialize creates the schema when it does not exist yet
func (p *PostgreSQLProvider) Initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pipelines (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			pipeline_id TEXT NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			config JSONB,
			position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
			position_y DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_pipeline ON nodes(pipeline_id)`,
		`CREATE TABLE IF NOT EXISTS edges (
			id TEXT PRIMARY KEY,
			pipeline_id TEXT NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
			source_node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
			target_node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
			source_handle TEXT NOT NULL DEFAULT '',
			target_handle TEXT NOT NULL DEFAULT '',
			UNIQUE (source_node_id, target_node_id, source_handle, target_handle)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_node_id)`,
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			id TEXT PRIMARY KEY,
			pipeline_id TEXT NOT NULL REFERENCES pipelines(id),
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			input_data JSONB,
			output_data JSONB,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS node_results (
			pipeline_run_id TEXT NOT NULL REFERENCES pipeline_runs(id) ON DELETE CASCADE,
			node_id TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			input_data JSONB,
			output_data JSONB,
			error_message TEXT NOT NULL DEFAULT '',
			metadata JSONB,
			PRIMARY KEY (pipeline_run_id, node_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (p *PostgreSQLProvider) Close() error {
	return p.db.Close()
}

// GetPipelineStore returns a store for pipeline definitions
func (p *PostgreSQLProvider) GetPipelineStore() PipelineStore {
	return p.pipelineStore
}

// GetRunStore returns a store for runs and node results
func (p *PostgreSQLProvider) GetRunStore() RunStore {
	return p.runStore
}

// PostgreSQLPipelineStore implements the PipelineStore interface using PostgreSQL
type PostgreSQLPipelineStore struct {
	db *sql.DB
}

// SavePipeline creates or updates a pipeline
func (s *PostgreSQLPipelineStore) SavePipeline(pipeline models.Pipeline) error {
	_, err := s.db.Exec(
		`INSERT INTO pipelines (id, name, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET name = $2, status = $3, updated_at = $5`,
		pipeline.ID, pipeline.Name, string(pipeline.Status), pipeline.CreatedAt, pipeline.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save pipeline: %w", err)
	}

	return nil
}

// GetPipeline retrieves a pipeline by ID
func (s *PostgreSQLPipelineStore) GetPipeline(pipelineID string) (models.Pipeline, error) {
	var pipeline models.Pipeline
	var status string

	err := s.db.QueryRow(
		`SELECT id, name, status, created_at, updated_at FROM pipelines WHERE id = $1`,
		pipelineID,
	).Scan(&pipeline.ID, &pipeline.Name, &status, &pipeline.CreatedAt, &pipeline.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Pipeline{}, ErrPipelineNotFound
	}
	if err != nil {
		return models.Pipeline{}, fmt.Errorf("failed to get pipeline: %w", err)
	}

	pipeline.Status = models.PipelineStatus(status)

	return pipeline, nil
}

// ListPipelines returns all pipelines
func (s *PostgreSQLPipelineStore) ListPipelines() ([]models.Pipeline, error) {
	rows, err := s.db.Query(`SELECT id, name, status, created_at, updated_at FROM pipelines ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	defer rows.Close()

	pipelines := make([]models.Pipeline, 0)
	for rows.Next() {
		var pipeline models.Pipeline
		var status string
		if err := rows.Scan(&pipeline.ID, &pipeline.Name, &status, &pipeline.CreatedAt, &pipeline.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}
		pipeline.Status = models.PipelineStatus(status)
		pipelines = append(pipelines, pipeline)
	}

	return pipelines, rows.Err()
}

// DeletePipeline removes a pipeline; nodes and edges cascade
func (s *PostgreSQLPipelineStore) DeletePipeline(pipelineID string) error {
	result, err := s.db.Exec(`DELETE FROM pipelines WHERE id = $1`, pipelineID)
	if err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrPipelineNotFound
	}

	return nil
}

// SaveNode creates or updates a node
func (s *PostgreSQLPipelineStore) SaveNode(node models.Node) error {
	configJSON, err := json.Marshal(node.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal node config: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO nodes (id, pipeline_id, name, type, config, position_x, position_y)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET name = $3, type = $4, config = $5, position_x = $6, position_y = $7`,
		node.ID, node.PipelineID, node.Name, string(node.Type), configJSON, node.PositionX, node.PositionY,
	)
	if err != nil {
		return fmt.Errorf("failed to save node: %w", err)
	}

	return nil
}

// GetNode retrieves a node by ID
func (s *PostgreSQLPipelineStore) GetNode(nodeID string) (models.Node, error) {
	var node models.Node
	var nodeType string
	var configJSON []byte

	err := s.db.QueryRow(
		`SELECT id, pipeline_id, name, type, config, position_x, position_y FROM nodes WHERE id = $1`,
		nodeID,
	).Scan(&node.ID, &node.PipelineID, &node.Name, &nodeType, &configJSON, &node.PositionX, &node.PositionY)
	if err == sql.ErrNoRows {
		return models.Node{}, ErrNodeNotFound
	}
	if err != nil {
		return models.Node{}, fmt.Errorf("failed to get node: %w", err)
	}

	node.Type = models.NodeType(nodeType)
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &node.Config); err != nil {
			return models.Node{}, fmt.Errorf("failed to unmarshal node config: %w", err)
		}
	}

	return node, nil
}

// ListNodes returns all nodes of a pipeline
func (s *PostgreSQLPipelineStore) ListNodes(pipelineID string) ([]models.Node, error) {
	rows, err := s.db.Query(
		`SELECT id, pipeline_id, name, type, config, position_x, position_y FROM nodes WHERE pipeline_id = $1 ORDER BY id`,
		pipelineID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]models.Node, 0)
	for rows.Next() {
		var node models.Node
		var nodeType string
		var configJSON []byte
		if err := rows.Scan(&node.ID, &node.PipelineID, &node.Name, &nodeType, &configJSON, &node.PositionX, &node.PositionY); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		node.Type = models.NodeType(nodeType)
		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &node.Config); err != nil {
				return nil, fmt.Errorf("failed to unmarshal node config: %w", err)
			}
		}
		nodes = append(nodes, node)
	}

	return nodes, rows.Err()
}

// DeleteNode removes a node; its edges cascade
func (s *PostgreSQLPipelineStore) DeleteNode(nodeID string) error {
	result, err := s.db.Exec(`DELETE FROM nodes WHERE id = $1`, nodeID)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNodeNotFound
	}

	return nil
}

// SaveEdge creates an edge; the unique index enforces tuple uniqueness
func (s *PostgreSQLPipelineStore) SaveEdge(edge models.Edge) error {
	_, err := s.db.Exec(
		`INSERT INTO edges (id, pipeline_id, source_node_id, target_node_id, source_handle, target_handle)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		edge.ID, edge.PipelineID, edge.SourceNodeID, edge.TargetNodeID, edge.SourceHandle, edge.TargetHandle,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEdge
		}
		return fmt.Errorf("failed to save edge: %w", err)
	}

	return nil
}

// ListEdges returns all edges of a pipeline
func (s *PostgreSQLPipelineStore) ListEdges(pipelineID string) ([]models.Edge, error) {
	return s.queryEdges(`SELECT id, pipeline_id, source_node_id, target_node_id, source_handle, target_handle FROM edges WHERE pipeline_id = $1 ORDER BY id`, pipelineID)
}

// ListEdgesByTarget returns all edges pointing at a node
func (s *PostgreSQLPipelineStore) ListEdgesByTarget(targetNodeID string) ([]models.Edge, error) {
	return s.queryEdges(`SELECT id, pipeline_id, source_node_id, target_node_id, source_handle, target_handle FROM edges WHERE target_node_id = $1 ORDER BY id`, targetNodeID)
}

func (s *PostgreSQLPipelineStore) queryEdges(query string, arg interface{}) ([]models.Edge, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	edges := make([]models.Edge, 0)
	for rows.Next() {
		var edge models.Edge
		if err := rows.Scan(&edge.ID, &edge.PipelineID, &edge.SourceNodeID, &edge.TargetNodeID, &edge.SourceHandle, &edge.TargetHandle); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, edge)
	}

	return edges, rows.Err()
}

// DeleteEdge removes an edge
func (s *PostgreSQLPipelineStore) DeleteEdge(edgeID string) error {
	result, err := s.db.Exec(`DELETE FROM edges WHERE id = $1`, edgeID)
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrEdgeNotFound
	}

	return nil
}

// PostgreSQLRunStore implements the RunStore interface using PostgreSQL
type PostgreSQLRunStore struct {
	db *sql.DB
}

// SaveRun creates or updates a pipeline run
func (s *PostgreSQLRunStore) SaveRun(run models.PipelineRun) error {
	inputJSON, err := json.Marshal(run.InputData)
	if err != nil {
		return fmt.Errorf("failed to marshal run input: %w", err)
	}
	outputJSON, err := json.Marshal(run.OutputData)
	if err != nil {
		return fmt.Errorf("failed to marshal run output: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO pipeline_runs (id, pipeline_id, status, started_at, completed_at, input_data, output_data, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET status = $3, started_at = $4, completed_at = $5, output_data = $7, error_message = $8`,
		run.ID, run.PipelineID, string(run.Status), nullableTime(run.StartedAt), nullableTime(run.CompletedAt),
		inputJSON, outputJSON, run.ErrorMessage, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *PostgreSQLRunStore) GetRun(runID string) (models.PipelineRun, error) {
	row := s.db.QueryRow(
		`SELECT id, pipeline_id, status, started_at, completed_at, input_data, output_data, error_message, created_at
		 FROM pipeline_runs WHERE id = $1`,
		runID,
	)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return models.PipelineRun{}, ErrRunNotFound
	}
	if err != nil {
		return models.PipelineRun{}, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns returns all runs of a pipeline
func (s *PostgreSQLRunStore) ListRuns(pipelineID string) ([]models.PipelineRun, error) {
	rows, err := s.db.Query(
		`SELECT id, pipeline_id, status, started_at, completed_at, input_data, output_data, error_message, created_at
		 FROM pipeline_runs WHERE pipeline_id = $1 ORDER BY created_at`,
		pipelineID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.PipelineRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// SaveNodeResult creates or updates the result record of one (run, node) pair
func (s *PostgreSQLRunStore) SaveNodeResult(result models.NodeResult) error {
	inputJSON, err := json.Marshal(result.InputData)
	if err != nil {
		return fmt.Errorf("failed to marshal node result input: %w", err)
	}
	outputJSON, err := json.Marshal(result.OutputData)
	if err != nil {
		return fmt.Errorf("failed to marshal node result output: %w", err)
	}
	metadataJSON, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal node result metadata: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO node_results (pipeline_run_id, node_id, status, started_at, completed_at, input_data, output_data, error_message, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (pipeline_run_id, node_id) DO UPDATE
		 SET status = $3, started_at = $4, completed_at = $5, input_data = $6, output_data = $7, error_message = $8, metadata = $9`,
		result.PipelineRunID, result.NodeID, string(result.Status), nullableTime(result.StartedAt),
		nullableTime(result.CompletedAt), inputJSON, outputJSON, result.ErrorMessage, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save node result: %w", err)
	}

	return nil
}

// GetNodeResult retrieves the result record of one (run, node) pair
func (s *PostgreSQLRunStore) GetNodeResult(runID, nodeID string) (models.NodeResult, error) {
	row := s.db.QueryRow(
		`SELECT pipeline_run_id, node_id, status, started_at, completed_at, input_data, output_data, error_message, metadata
		 FROM node_results WHERE pipeline_run_id = $1 AND node_id = $2`,
		runID, nodeID,
	)

	result, err := scanNodeResult(row)
	if err == sql.ErrNoRows {
		return models.NodeResult{}, ErrNodeResultNotFound
	}
	if err != nil {
		return models.NodeResult{}, fmt.Errorf("failed to get node result: %w", err)
	}

	return result, nil
}

// ListNodeResults returns all node results of a run
func (s *PostgreSQLRunStore) ListNodeResults(runID string) ([]models.NodeResult, error) {
	rows, err := s.db.Query(
		`SELECT pipeline_run_id, node_id, status, started_at, completed_at, input_data, output_data, error_message, metadata
		 FROM node_results WHERE pipeline_run_id = $1 ORDER BY node_id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list node results: %w", err)
	}
	defer rows.Close()

	results := make([]models.NodeResult, 0)
	for rows.Next() {
		result, err := scanNodeResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node result: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (models.PipelineRun, error) {
	var run models.PipelineRun
	var status string
	var startedAt, completedAt sql.NullTime
	var inputJSON, outputJSON []byte

	err := row.Scan(&run.ID, &run.PipelineID, &status, &startedAt, &completedAt,
		&inputJSON, &outputJSON, &run.ErrorMessage, &run.CreatedAt)
	if err != nil {
		return models.PipelineRun{}, err
	}

	run.Status = models.RunStatus(status)
	run.StartedAt = timePtr(startedAt)
	run.CompletedAt = timePtr(completedAt)
	if err := unmarshalMap(inputJSON, &run.InputData); err != nil {
		return models.PipelineRun{}, err
	}
	if err := unmarshalMap(outputJSON, &run.OutputData); err != nil {
		return models.PipelineRun{}, err
	}

	return run, nil
}

func scanNodeResult(row rowScanner) (models.NodeResult, error) {
	var result models.NodeResult
	var status string
	var startedAt, completedAt sql.NullTime
	var inputJSON, outputJSON, metadataJSON []byte

	err := row.Scan(&result.PipelineRunID, &result.NodeID, &status, &startedAt, &completedAt,
		&inputJSON, &outputJSON, &result.ErrorMessage, &metadataJSON)
	if err != nil {
		return models.NodeResult{}, err
	}

	result.Status = models.NodeResultStatus(status)
	result.StartedAt = timePtr(startedAt)
	result.CompletedAt = timePtr(completedAt)
	if err := unmarshalMap(inputJSON, &result.InputData); err != nil {
		return models.NodeResult{}, err
	}
	if err := unmarshalMap(outputJSON, &result.OutputData); err != nil {
		return models.NodeResult{}, err
	}
	if err := unmarshalMap(metadataJSON, &result.Metadata); err != nil {
		return models.NodeResult{}, err
	}

	return result, nil
}

func unmarshalMap(data []byte, dest *map[string]interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dest)
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time
	return &value
}

// isUniqueViolation reports whether the error is a Postgres unique_violation
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
