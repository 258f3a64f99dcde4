package runtime

import (
	"context"
	"fmt"

	"github.com/pyrex41/reelflow/pkg/models"
	"github.com/pyrex41/reelflow/pkg/queue"
	"github.com/pyrex41/reelflow/pkg/registry"
)

// stubNodeType is a declared extension point. The type is registered so it is
// a known name, but validation and execution fail until an implementation
// lands.
type stubNodeType struct {
	name string
}

// NewConditionNodeType creates the condition node type stub.
func NewConditionNodeType() registry.NodeType {
	return &stubNodeType{name: string(models.NodeTypeCondition)}
}

// NewTransformNodeType creates the transform node type stub.
func NewTransformNodeType() registry.NodeType {
	return &stubNodeType{name: string(models.NodeTypeTransform)}
}

func (s *stubNodeType) Type() string {
	return s.name
}

func (s *stubNodeType) ValidateConfig(node *models.Node) error {
	return fmt.Errorf("node type %q is not implemented yet", s.name)
}

func (s *stubNodeType) Execute(ctx context.Context, node *models.Node, inputs map[string]interface{}, execCtx registry.ExecutionContext) (map[string]interface{}, map[string]interface{}, error) {
	return nil, nil, queue.Permanent(fmt.Errorf("node type %q is not implemented yet", s.name))
}
