package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrex41/reelflow/pkg/models"
)

type fakeNodeType struct {
	name string
}

func (f *fakeNodeType) Type() string                            { return f.name }
func (f *fakeNodeType) ValidateConfig(node *models.Node) error  { return nil }
func (f *fakeNodeType) Execute(ctx context.Context, node *models.Node, inputs map[string]interface{}, execCtx ExecutionContext) (map[string]interface{}, map[string]interface{}, error) {
	return map[string]interface{}{"type": f.name}, nil, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeNodeType{name: "text"}))

	got, err := r.Get("text")
	require.NoError(t, err)
	assert.Equal(t, "text", got.Type())
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeNodeType{name: "text"}))

	err := r.Register(&fakeNodeType{name: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryGetUnknownType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeTypeNotFound)
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeNodeType{name: "llm"}))
	require.NoError(t, r.Register(&fakeNodeType{name: "text"}))
	require.NoError(t, r.Register(&fakeNodeType{name: "http_request"}))

	assert.Equal(t, []string{"http_request", "llm", "text"}, r.List())
}

func TestRegistryMustRegisterPanicsOnConflict(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&fakeNodeType{name: "text"})

	assert.Panics(t, func() {
		r.MustRegister(&fakeNodeType{name: "text"})
	})
}
