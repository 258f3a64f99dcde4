// Package loader deploys pipelines from YAML definitions.
package loader

// PipelineDefinition is the YAML schema of a deployable pipeline.
type PipelineDefinition struct {
	// Name of the pipeline
	Name string `yaml:"name"`

	// Nodes keyed by a definition-local name, referenced by edges
	Nodes map[string]NodeDefinition `yaml:"nodes"`

	// Edges between nodes
	Edges []EdgeDefinition `yaml:"edges"`
}

// NodeDefinition describes one node.
type NodeDefinition struct {
	// Type of the node (text, http_request, llm, ...)
	Type string `yaml:"type"`

	// Config is the type-specific configuration
	Config map[string]interface{} `yaml:"config"`

	// Position on the UI canvas
	Position PositionDefinition `yaml:"position"`
}

// PositionDefinition is a UI canvas position.
type PositionDefinition struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// EdgeDefinition connects two nodes by their definition-local names.
type EdgeDefinition struct {
	Source       string `yaml:"source"`
	Target       string `yaml:"target"`
	SourceHandle string `yaml:"source_handle"`
	TargetHandle string `yaml:"target_handle"`
}
