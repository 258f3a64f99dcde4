package runtime

import (
	"context"
	"fmt"

	"github.com/pyrex41/reelflow/pkg/models"
	"github.com/pyrex41/reelflow/pkg/queue"
	"github.com/pyrex41/reelflow/pkg/registry"
	"github.com/pyrex41/reelflow/pkg/utils"
)

// textNodeType renders a template against the node's inputs.
//
// Config:
//
//	content (string, required) - the template to render, with {{variable}}
//	    placeholders resolved against the node's input map
type textNodeType struct{}

// NewTextNodeType creates the text node type.
func NewTextNodeType() registry.NodeType {
	return &textNodeType{}
}

func (t *textNodeType) Type() string {
	return string(models.NodeTypeText)
}

func (t *textNodeType) ValidateConfig(node *models.Node) error {
	content, ok := configString(node, "content")
	if !ok {
		return fmt.Errorf("text node requires a 'content' string")
	}
	if content == "" {
		return fmt.Errorf("text node 'content' must not be empty")
	}
	return nil
}

func (t *textNodeType) Execute(ctx context.Context, node *models.Node, inputs map[string]interface{}, execCtx registry.ExecutionContext) (map[string]interface{}, map[string]interface{}, error) {
	content, _ := configString(node, "content")

	rendered, err := utils.ProcessTemplate(content, inputs)
	if err != nil {
		// Template errors are data errors; retrying cannot fix them.
		return nil, nil, queue.Permanent(fmt.Errorf("template rendering failed: %w", err))
	}

	output := map[string]interface{}{
		"text":              rendered,
		"original_template": content,
	}
	metadata := map[string]interface{}{
		"template_length":    len(content),
		"output_length":      len(rendered),
		"template_variables": utils.TemplateVariables(content),
	}

	return output, metadata, nil
}
