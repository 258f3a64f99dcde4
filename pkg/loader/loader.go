package loader

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pyrex41/reelflow/pkg/models"
	"github.com/pyrex41/reelflow/pkg/runtime"
)

// Loader parses YAML pipeline definitions and deploys them through the
// pipeline service.
type Loader struct {
	service *runtime.Service
}

// NewLoader creates a loader.
func NewLoader(service *runtime.Service) *Loader {
	return &Loader{service: service}
}

// Parse decodes and validates a YAML pipeline definition.
func (l *Loader) Parse(yamlContent []byte) (*PipelineDefinition, error) {
	var def PipelineDefinition
	if err := yaml.Unmarshal(yamlContent, &def); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if err := l.Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks a definition for structural problems before deployment.
func (l *Loader) Validate(def *PipelineDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}

	for name, node := range def.Nodes {
		if node.Type == "" {
			return fmt.Errorf("node '%s' is missing a type", name)
		}
	}

	for i, edge := range def.Edges {
		if edge.Source == "" || edge.Target == "" {
			return fmt.Errorf("edge %d must name a source and a target", i)
		}
		if _, ok := def.Nodes[edge.Source]; !ok {
			return fmt.Errorf("edge %d references unknown node '%s'", i, edge.Source)
		}
		if _, ok := def.Nodes[edge.Target]; !ok {
			return fmt.Errorf("edge %d references unknown node '%s'", i, edge.Target)
		}
	}

	return nil
}

// Deploy parses a YAML definition, creates the pipeline with its nodes and
// edges, and activates it. Node type, config, and graph validation happen
// through the service, so a deployed pipeline is ready to run.
func (l *Loader) Deploy(ctx context.Context, yamlContent []byte) (models.Pipeline, error) {
	def, err := l.Parse(yamlContent)
	if err != nil {
		return models.Pipeline{}, err
	}

	pipeline, err := l.service.CreatePipeline(def.Name)
	if err != nil {
		return models.Pipeline{}, err
	}

	// Deploy is all-or-nothing: a failed step removes the partial pipeline.
	cleanup := func(cause error) (models.Pipeline, error) {
		if err := l.service.DeletePipeline(pipeline.ID); err != nil {
			return models.Pipeline{}, fmt.Errorf("%w (cleanup failed: %v)", cause, err)
		}
		return models.Pipeline{}, cause
	}

	names := make([]string, 0, len(def.Nodes))
	for name := range def.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	nodeIDs := make(map[string]string, len(names))
	for _, name := range names {
		nodeDef := def.Nodes[name]
		node, err := l.service.AddNode(pipeline.ID, name, models.NodeType(nodeDef.Type), nodeDef.Config, nodeDef.Position.X, nodeDef.Position.Y)
		if err != nil {
			return cleanup(fmt.Errorf("node '%s': %w", name, err))
		}
		nodeIDs[name] = node.ID
	}

	for i, edgeDef := range def.Edges {
		_, err := l.service.AddEdge(pipeline.ID, nodeIDs[edgeDef.Source], nodeIDs[edgeDef.Target], edgeDef.SourceHandle, edgeDef.TargetHandle)
		if err != nil {
			return cleanup(fmt.Errorf("edge %d: %w", i, err))
		}
	}

	activated, err := l.service.ActivatePipeline(pipeline.ID)
	if err != nil {
		return cleanup(err)
	}

	return activated, nil
}
