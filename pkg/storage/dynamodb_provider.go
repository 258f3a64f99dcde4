package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/dynamodb/expression"

	"github.com/pyrex41/reelflow/pkg/models"
)

// DynamoDBProvider implements the StorageProvider interface using DynamoDB
type DynamoDBProvider struct {
	client        dynamodbiface.DynamoDBAPI
	pipelineStore *DynamoDBPipelineStore
	runStore      *DynamoDBRunStore
	tablePrefix   string
}

// DynamoDBProviderConfig contains configuration for the DynamoDB provider
type DynamoDBProviderConfig struct {
	Region      string
	AccessKey   string
	SecretKey   string
	TablePrefix string
	Endpoint    string // Optional, for local DynamoDB
}

// NewDynamoDBProvider creates a new DynamoDB storage provider
func NewDynamoDBProvider(config DynamoDBProviderConfig) (*DynamoDBProvider, error) {
	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}

	if config.AccessKey != "" && config.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}

	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewDynamoDBProviderWithClient(dynamodb.New(sess), config.TablePrefix), nil
}

// NewDynamoDBProviderWithClient creates a provider around an existing client.
// This is primarily used for testing with mock clients.
func NewDynamoDBProviderWithClient(client dynamodbiface.DynamoDBAPI, tablePrefix string) *DynamoDBProvider {
	return &DynamoDBProvider{
		client:        client,
		tablePrefix:   tablePrefix,
		pipelineStore: &DynamoDBPipelineStore{client: client, tablePrefix: tablePrefix},
		runStore:      &DynamoDBRunStore{client: client, tablePrefix: tablePrefix},
	}
}

// Initialize creates the tables when they do not exist yet
func (p *DynamoDBProvider) Initialize() error {
	tables := []struct {
		name string
		keys []*dynamodb.KeySchemaElement
		defs []*dynamodb.AttributeDefinition
	}{
		{
			name: p.tablePrefix + "pipelines",
			keys: []*dynamodb.KeySchemaElement{{AttributeName: aws.String("id"), KeyType: aws.String("HASH")}},
			defs: []*dynamodb.AttributeDefinition{{AttributeName: aws.String("id"), AttributeType: aws.String("S")}},
		},
		{
			name: p.tablePrefix + "nodes",
			keys: []*dynamodb.KeySchemaElement{{AttributeName: aws.String("id"), KeyType: aws.String("HASH")}},
			defs: []*dynamodb.AttributeDefinition{{AttributeName: aws.String("id"), AttributeType: aws.String("S")}},
		},
		{
			name: p.tablePrefix + "edges",
			keys: []*dynamodb.KeySchemaElement{{AttributeName: aws.String("id"), KeyType: aws.String("HASH")}},
			defs: []*dynamodb.AttributeDefinition{{AttributeName: aws.String("id"), AttributeType: aws.String("S")}},
		},
		{
			name: p.tablePrefix + "pipeline_runs",
			keys: []*dynamodb.KeySchemaElement{{AttributeName: aws.String("id"), KeyType: aws.String("HASH")}},
			defs: []*dynamodb.AttributeDefinition{{AttributeName: aws.String("id"), AttributeType: aws.String("S")}},
		},
		{
			name: p.tablePrefix + "node_results",
			keys: []*dynamodb.KeySchemaElement{
				{AttributeName: aws.String("pipeline_run_id"), KeyType: aws.String("HASH")},
				{AttributeName: aws.String("node_id"), KeyType: aws.String("RANGE")},
			},
			defs: []*dynamodb.AttributeDefinition{
				{AttributeName: aws.String("pipeline_run_id"), AttributeType: aws.String("S")},
				{AttributeName: aws.String("node_id"), AttributeType: aws.String("S")},
			},
		},
	}

	for _, table := range tables {
		_, err := p.client.CreateTable(&dynamodb.CreateTableInput{
			TableName:            aws.String(table.name),
			KeySchema:            table.keys,
			AttributeDefinitions: table.defs,
			BillingMode:          aws.String("PAY_PER_REQUEST"),
		})
		if err != nil {
			if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeResourceInUseException {
				continue
			}
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}

	return nil
}

// Close cleans up resources
func (p *DynamoDBProvider) Close() error {
	// Nothing to close for DynamoDB client
	return nil
}

// GetPipelineStore returns a store for pipeline definitions
func (p *DynamoDBProvider) GetPipelineStore() PipelineStore {
	return p.pipelineStore
}

// GetRunStore returns a store for runs and node results
func (p *DynamoDBProvider) GetRunStore() RunStore {
	return p.runStore
}

// dynamoPipelineItem is the storage representation of a pipeline
type dynamoPipelineItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// dynamoNodeItem is the storage representation of a node; the config map is
// stored as a JSON string to sidestep DynamoDB's empty-value restrictions
type dynamoNodeItem struct {
	ID         string  `json:"id"`
	PipelineID string  `json:"pipeline_id"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	ConfigJSON string  `json:"config_json"`
	PositionX  float64 `json:"position_x"`
	PositionY  float64 `json:"position_y"`
}

type dynamoEdgeItem struct {
	ID           string `json:"id"`
	PipelineID   string `json:"pipeline_id"`
	SourceNodeID string `json:"source_node_id"`
	TargetNodeID string `json:"target_node_id"`
	SourceHandle string `json:"source_handle"`
	TargetHandle string `json:"target_handle"`
}

type dynamoRunItem struct {
	ID           string `json:"id"`
	PipelineID   string `json:"pipeline_id"`
	Status       string `json:"status"`
	StartedAt    int64  `json:"started_at"`
	CompletedAt  int64  `json:"completed_at"`
	InputJSON    string `json:"input_json"`
	OutputJSON   string `json:"output_json"`
	ErrorMessage string `json:"error_message"`
	CreatedAt    int64  `json:"created_at"`
}

type dynamoNodeResultItem struct {
	PipelineRunID string `json:"pipeline_run_id"`
	NodeID        string `json:"node_id"`
	Status        string `json:"status"`
	StartedAt     int64  `json:"started_at"`
	CompletedAt   int64  `json:"completed_at"`
	InputJSON     string `json:"input_json"`
	OutputJSON    string `json:"output_json"`
	ErrorMessage  string `json:"error_message"`
	MetadataJSON  string `json:"metadata_json"`
}

// DynamoDBPipelineStore implements the PipelineStore interface using DynamoDB
type DynamoDBPipelineStore struct {
	client      dynamodbiface.DynamoDBAPI
	tablePrefix string
}

// SavePipeline creates or updates a pipeline
func (s *DynamoDBPipelineStore) SavePipeline(pipeline models.Pipeline) error {
	item := dynamoPipelineItem{
		ID:        pipeline.ID,
		Name:      pipeline.Name,
		Status:    string(pipeline.Status),
		CreatedAt: pipeline.CreatedAt.Unix(),
		UpdatedAt: pipeline.UpdatedAt.Unix(),
	}

	return s.putItem(s.tablePrefix+"pipelines", item)
}

// GetPipeline retrieves a pipeline by ID
func (s *DynamoDBPipelineStore) GetPipeline(pipelineID string) (models.Pipeline, error) {
	var item dynamoPipelineItem
	found, err := s.getItem(s.tablePrefix+"pipelines", idKey(pipelineID), &item)
	if err != nil {
		return models.Pipeline{}, err
	}
	if !found {
		return models.Pipeline{}, ErrPipelineNotFound
	}

	return models.Pipeline{
		ID:        item.ID,
		Name:      item.Name,
		Status:    models.PipelineStatus(item.Status),
		CreatedAt: time.Unix(item.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(item.UpdatedAt, 0).UTC(),
	}, nil
}

// ListPipelines returns all pipelines
func (s *DynamoDBPipelineStore) ListPipelines() ([]models.Pipeline, error) {
	var items []dynamoPipelineItem
	if err := s.scan(s.tablePrefix+"pipelines", nil, &items); err != nil {
		return nil, err
	}

	pipelines := make([]models.Pipeline, 0, len(items))
	for _, item := range items {
		pipelines = append(pipelines, models.Pipeline{
			ID:        item.ID,
			Name:      item.Name,
			Status:    models.PipelineStatus(item.Status),
			CreatedAt: time.Unix(item.CreatedAt, 0).UTC(),
			UpdatedAt: time.Unix(item.UpdatedAt, 0).UTC(),
		})
	}

	return pipelines, nil
}

// DeletePipeline removes a pipeline with its nodes and edges
func (s *DynamoDBPipelineStore) DeletePipeline(pipelineID string) error {
	if _, err := s.GetPipeline(pipelineID); err != nil {
		return err
	}

	nodes, err := s.ListNodes(pipelineID)
	if err != nil {
		return err
	}
	edges, err := s.ListEdges(pipelineID)
	if err != nil {
		return err
	}

	for _, edge := range edges {
		if err := s.deleteItem(s.tablePrefix+"edges", idKey(edge.ID)); err != nil {
			return err
		}
	}
	for _, node := range nodes {
		if err := s.deleteItem(s.tablePrefix+"nodes", idKey(node.ID)); err != nil {
			return err
		}
	}

	return s.deleteItem(s.tablePrefix+"pipelines", idKey(pipelineID))
}

// SaveNode creates or updates a node
func (s *DynamoDBPipelineStore) SaveNode(node models.Node) error {
	configJSON, err := json.Marshal(node.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal node config: %w", err)
	}

	item := dynamoNodeItem{
		ID:         node.ID,
		PipelineID: node.PipelineID,
		Name:       node.Name,
		Type:       string(node.Type),
		ConfigJSON: string(configJSON),
		PositionX:  node.PositionX,
		PositionY:  node.PositionY,
	}

	return s.putItem(s.tablePrefix+"nodes", item)
}

// GetNode retrieves a node by ID
func (s *DynamoDBPipelineStore) GetNode(nodeID string) (models.Node, error) {
	var item dynamoNodeItem
	found, err := s.getItem(s.tablePrefix+"nodes", idKey(nodeID), &item)
	if err != nil {
		return models.Node{}, err
	}
	if !found {
		return models.Node{}, ErrNodeNotFound
	}

	return nodeFromItem(item)
}

// ListNodes returns all nodes of a pipeline
func (s *DynamoDBPipelineStore) ListNodes(pipelineID string) ([]models.Node, error) {
	filter := expression.Name("pipeline_id").Equal(expression.Value(pipelineID))

	var items []dynamoNodeItem
	if err := s.scan(s.tablePrefix+"nodes", &filter, &items); err != nil {
		return nil, err
	}

	nodes := make([]models.Node, 0, len(items))
	for _, item := range items {
		node, err := nodeFromItem(item)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}

// DeleteNode removes a node and every edge touching it
func (s *DynamoDBPipelineStore) DeleteNode(nodeID string) error {
	if _, err := s.GetNode(nodeID); err != nil {
		return err
	}

	filter := expression.Name("source_node_id").Equal(expression.Value(nodeID)).
		Or(expression.Name("target_node_id").Equal(expression.Value(nodeID)))

	var edges []dynamoEdgeItem
	if err := s.scan(s.tablePrefix+"edges", &filter, &edges); err != nil {
		return err
	}
	for _, edge := range edges {
		if err := s.deleteItem(s.tablePrefix+"edges", idKey(edge.ID)); err != nil {
			return err
		}
	}

	return s.deleteItem(s.tablePrefix+"nodes", idKey(nodeID))
}

// SaveEdge creates an edge, enforcing tuple uniqueness with a scan
func (s *DynamoDBPipelineStore) SaveEdge(edge models.Edge) error {
	filter := expression.Name("source_node_id").Equal(expression.Value(edge.SourceNodeID)).
		And(expression.Name("target_node_id").Equal(expression.Value(edge.TargetNodeID))).
		And(expression.Name("source_handle").Equal(expression.Value(edge.SourceHandle))).
		And(expression.Name("target_handle").Equal(expression.Value(edge.TargetHandle)))

	var existing []dynamoEdgeItem
	if err := s.scan(s.tablePrefix+"edges", &filter, &existing); err != nil {
		return err
	}
	for _, item := range existing {
		if item.ID != edge.ID {
			return ErrDuplicateEdge
		}
	}

	item := dynamoEdgeItem{
		ID:           edge.ID,
		PipelineID:   edge.PipelineID,
		SourceNodeID: edge.SourceNodeID,
		TargetNodeID: edge.TargetNodeID,
		SourceHandle: edge.SourceHandle,
		TargetHandle: edge.TargetHandle,
	}

	return s.putItem(s.tablePrefix+"edges", item)
}

// ListEdges returns all edges of a pipeline
func (s *DynamoDBPipelineStore) ListEdges(pipelineID string) ([]models.Edge, error) {
	filter := expression.Name("pipeline_id").Equal(expression.Value(pipelineID))
	return s.listEdgesFiltered(&filter)
}

// ListEdgesByTarget returns all edges pointing at a node
func (s *DynamoDBPipelineStore) ListEdgesByTarget(targetNodeID string) ([]models.Edge, error) {
	filter := expression.Name("target_node_id").Equal(expression.Value(targetNodeID))
	return s.listEdgesFiltered(&filter)
}

func (s *DynamoDBPipelineStore) listEdgesFiltered(filter *expression.ConditionBuilder) ([]models.Edge, error) {
	var items []dynamoEdgeItem
	if err := s.scan(s.tablePrefix+"edges", filter, &items); err != nil {
		return nil, err
	}

	edges := make([]models.Edge, 0, len(items))
	for _, item := range items {
		edges = append(edges, models.Edge{
			ID:           item.ID,
			PipelineID:   item.PipelineID,
			SourceNodeID: item.SourceNodeID,
			TargetNodeID: item.TargetNodeID,
			SourceHandle: item.SourceHandle,
			TargetHandle: item.TargetHandle,
		})
	}

	return edges, nil
}

// DeleteEdge removes an edge
func (s *DynamoDBPipelineStore) DeleteEdge(edgeID string) error {
	var item dynamoEdgeItem
	found, err := s.getItem(s.tablePrefix+"edges", idKey(edgeID), &item)
	if err != nil {
		return err
	}
	if !found {
		return ErrEdgeNotFound
	}

	return s.deleteItem(s.tablePrefix+"edges", idKey(edgeID))
}

func (s *DynamoDBPipelineStore) putItem(table string, item interface{}) error {
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}

	return nil
}

func (s *DynamoDBPipelineStore) getItem(table string, key map[string]*dynamodb.AttributeValue, out interface{}) (bool, error) {
	return dynamoGetItem(s.client, table, key, out)
}

func (s *DynamoDBPipelineStore) deleteItem(table string, key map[string]*dynamodb.AttributeValue) error {
	return dynamoDeleteItem(s.client, table, key)
}

func (s *DynamoDBPipelineStore) scan(table string, filter *expression.ConditionBuilder, out interface{}) error {
	return dynamoScan(s.client, table, filter, out)
}

// DynamoDBRunStore implements the RunStore interface using DynamoDB
type DynamoDBRunStore struct {
	client      dynamodbiface.DynamoDBAPI
	tablePrefix string
}

// SaveRun creates or updates a pipeline run
func (s *DynamoDBRunStore) SaveRun(run models.PipelineRun) error {
	inputJSON, err := json.Marshal(run.InputData)
	if err != nil {
		return fmt.Errorf("failed to marshal run input: %w", err)
	}
	outputJSON, err := json.Marshal(run.OutputData)
	if err != nil {
		return fmt.Errorf("failed to marshal run output: %w", err)
	}

	item := dynamoRunItem{
		ID:           run.ID,
		PipelineID:   run.PipelineID,
		Status:       string(run.Status),
		StartedAt:    unixOrZero(run.StartedAt),
		CompletedAt:  unixOrZero(run.CompletedAt),
		InputJSON:    string(inputJSON),
		OutputJSON:   string(outputJSON),
		ErrorMessage: run.ErrorMessage,
		CreatedAt:    run.CreatedAt.Unix(),
	}

	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.tablePrefix + "pipeline_runs"),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *DynamoDBRunStore) GetRun(runID string) (models.PipelineRun, error) {
	var item dynamoRunItem
	found, err := dynamoGetItem(s.client, s.tablePrefix+"pipeline_runs", idKey(runID), &item)
	if err != nil {
		return models.PipelineRun{}, err
	}
	if !found {
		return models.PipelineRun{}, ErrRunNotFound
	}

	return runFromItem(item)
}

// ListRuns returns all runs of a pipeline
func (s *DynamoDBRunStore) ListRuns(pipelineID string) ([]models.PipelineRun, error) {
	filter := expression.Name("pipeline_id").Equal(expression.Value(pipelineID))

	var items []dynamoRunItem
	if err := dynamoScan(s.client, s.tablePrefix+"pipeline_runs", &filter, &items); err != nil {
		return nil, err
	}

	runs := make([]models.PipelineRun, 0, len(items))
	for _, item := range items {
		run, err := runFromItem(item)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, nil
}

// SaveNodeResult creates or updates the result record of one (run, node) pair
func (s *DynamoDBRunStore) SaveNodeResult(result models.NodeResult) error {
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

	item := dynamoNodeResultItem{
		PipelineRunID: result.PipelineRunID,
		NodeID:        result.NodeID,
		Status:        string(result.Status),
		StartedAt:     unixOrZero(result.StartedAt),
		CompletedAt:   unixOrZero(result.CompletedAt),
		InputJSON:     string(inputJSON),
		OutputJSON:    string(outputJSON),
		ErrorMessage:  result.ErrorMessage,
		MetadataJSON:  string(metadataJSON),
	}

	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal node result: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.tablePrefix + "node_results"),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to save node result: %w", err)
	}

	return nil
}

// GetNodeResult retrieves the result record of one (run, node) pair
func (s *DynamoDBRunStore) GetNodeResult(runID, nodeID string) (models.NodeResult, error) {
	key := map[string]*dynamodb.AttributeValue{
		"pipeline_run_id": {S: aws.String(runID)},
		"node_id":         {S: aws.String(nodeID)},
	}

	var item dynamoNodeResultItem
	found, err := dynamoGetItem(s.client, s.tablePrefix+"node_results", key, &item)
	if err != nil {
		return models.NodeResult{}, err
	}
	if !found {
		return models.NodeResult{}, ErrNodeResultNotFound
	}

	return nodeResultFromItem(item)
}

// ListNodeResults returns all node results of a run
func (s *DynamoDBRunStore) ListNodeResults(runID string) ([]models.NodeResult, error) {
	keyCond := expression.Key("pipeline_run_id").Equal(expression.Value(runID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	output, err := s.client.Query(&dynamodb.QueryInput{
		TableName:                 aws.String(s.tablePrefix + "node_results"),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query node results: %w", err)
	}

	results := make([]models.NodeResult, 0, len(output.Items))
	for _, raw := range output.Items {
		var item dynamoNodeResultItem
		if err := dynamodbattribute.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node result: %w", err)
		}
		result, err := nodeResultFromItem(item)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}

func nodeFromItem(item dynamoNodeItem) (models.Node, error) {
	node := models.Node{
		ID:         item.ID,
		PipelineID: item.PipelineID,
		Name:       item.Name,
		Type:       models.NodeType(item.Type),
		PositionX:  item.PositionX,
		PositionY:  item.PositionY,
	}

	if err := unmarshalJSONMap(item.ConfigJSON, &node.Config); err != nil {
		return models.Node{}, fmt.Errorf("failed to unmarshal node config: %w", err)
	}

	return node, nil
}

func runFromItem(item dynamoRunItem) (models.PipelineRun, error) {
	run := models.PipelineRun{
		ID:           item.ID,
		PipelineID:   item.PipelineID,
		Status:       models.RunStatus(item.Status),
		StartedAt:    timeFromUnix(item.StartedAt),
		CompletedAt:  timeFromUnix(item.CompletedAt),
		ErrorMessage: item.ErrorMessage,
		CreatedAt:    time.Unix(item.CreatedAt, 0).UTC(),
	}

	if err := unmarshalJSONMap(item.InputJSON, &run.InputData); err != nil {
		return models.PipelineRun{}, fmt.Errorf("failed to unmarshal run input: %w", err)
	}
	if err := unmarshalJSONMap(item.OutputJSON, &run.OutputData); err != nil {
		return models.PipelineRun{}, fmt.Errorf("failed to unmarshal run output: %w", err)
	}

	return run, nil
}

func nodeResultFromItem(item dynamoNodeResultItem) (models.NodeResult, error) {
	result := models.NodeResult{
		PipelineRunID: item.PipelineRunID,
		NodeID:        item.NodeID,
		Status:        models.NodeResultStatus(item.Status),
		StartedAt:     timeFromUnix(item.StartedAt),
		CompletedAt:   timeFromUnix(item.CompletedAt),
		ErrorMessage:  item.ErrorMessage,
	}

	if err := unmarshalJSONMap(item.InputJSON, &result.InputData); err != nil {
		return models.NodeResult{}, fmt.Errorf("failed to unmarshal node result input: %w", err)
	}
	if err := unmarshalJSONMap(item.OutputJSON, &result.OutputData); err != nil {
		return models.NodeResult{}, fmt.Errorf("failed to unmarshal node result output: %w", err)
	}
	if err := unmarshalJSONMap(item.MetadataJSON, &result.Metadata); err != nil {
		return models.NodeResult{}, fmt.Errorf("failed to unmarshal node result metadata: %w", err)
	}

	return result, nil
}

func unmarshalJSONMap(data string, dest *map[string]interface{}) error {
	if data == "" || data == "null" {
		return nil
	}
	return json.Unmarshal([]byte(data), dest)
}

func idKey(id string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"id": {S: aws.String(id)},
	}
}

func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}

func timeFromUnix(v int64) *time.Time {
	if v == 0 {
		return nil
	}
	t := time.Unix(v, 0).UTC()
	return &t
}

func dynamoGetItem(client dynamodbiface.DynamoDBAPI, table string, key map[string]*dynamodb.AttributeValue, out interface{}) (bool, error) {
	result, err := client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		return false, fmt.Errorf("failed to get item: %w", err)
	}

	if result.Item == nil {
		return false, nil
	}

	if err := dynamodbattribute.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	return true, nil
}

func dynamoDeleteItem(client dynamodbiface.DynamoDBAPI, table string, key map[string]*dynamodb.AttributeValue) error {
	_, err := client.DeleteItem(&dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	return nil
}

func dynamoScan(client dynamodbiface.DynamoDBAPI, table string, filter *expression.ConditionBuilder, out interface{}) error {
	input := &dynamodb.ScanInput{
		TableName: aws.String(table),
	}

	if filter != nil {
		expr, err := expression.NewBuilder().WithFilter(*filter).Build()
		if err != nil {
			return fmt.Errorf("failed to build filter expression: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	items := make([]map[string]*dynamodb.AttributeValue, 0)
	err := client.ScanPages(input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		items = append(items, page.Items...)
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to scan table %s: %w", table, err)
	}

	if err := dynamodbattribute.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to unmarshal items: %w", err)
	}

	return nil
}
