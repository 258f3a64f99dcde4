package runtime

import (
	"fmt"

	"github.com/pyrex41/reelflow/pkg/config"
	"github.com/pyrex41/reelflow/pkg/models"
	"github.com/pyrex41/reelflow/pkg/registry"
)

// CoreNodeTypes returns the node types shipped with the engine.
func CoreNodeTypes(cfg *config.Config) []registry.NodeType {
	return []registry.NodeType{
		NewTextNodeType(),
		NewHTTPRequestNodeType(cfg.Engine.HTTPTimeout),
		NewLLMNodeType(cfg.LLM, cfg.Engine.LLMTimeout),
		NewConditionNodeType(),
		NewTransformNodeType(),
	}
}

// RegisterCoreNodeTypes registers the built-in node types on a registry.
func RegisterCoreNodeTypes(reg *registry.Registry, cfg *config.Config) error {
	for _, nodeType := range CoreNodeTypes(cfg) {
		if err := reg.Register(nodeType); err != nil {
			return err
		}
	}
	return nil
}

// configString extracts a string value from a node's configuration map.
func configString(node *models.Node, key string) (string, bool) {
	if node.Config == nil {
		return "", false
	}
	value, ok := node.Config[key].(string)
	return value, ok
}

// configStringMap extracts a map of string values, accepting both
// map[string]string and the map[string]interface{} JSON decoding produces.
func configStringMap(node *models.Node, key string) (map[string]string, error) {
	if node.Config == nil {
		return nil, nil
	}
	raw, ok := node.Config[key]
	if !ok || raw == nil {
		return nil, nil
	}

	switch typed := raw.(type) {
	case map[string]string:
		return typed, nil
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("'%s.%s' must be a string", key, k)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("'%s' must be a map of strings", key)
	}
}

// configFloat extracts a numeric value, accepting int and float64.
func configFloat(node *models.Node, key string) (float64, bool) {
	if node.Config == nil {
		return 0, false
	}
	switch v := node.Config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
