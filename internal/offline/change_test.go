package offline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChange_Validate(t *testing.T) {
	tests := []struct {
		name    string
		change  Change
		wantErr error
	}{
		{"task", Change{Type: ChangeTaskUpdate, Data: map[string]any{"id": "t1"}}, nil},
		{"feature", Change{Type: ChangeFeatureUpdate, Data: map[string]any{"id": "t2"}}, nil},
		{"project numeric id", Change{Type: ChangeProjectUpdate, Data: map[string]any{"id": float64(42)}}, nil},
		{"unknown type", Change{Type: "milestone-update", Data: map[string]any{"id": "x"}}, ErrUnknownChangeType},
		{"missing id", Change{Type: ChangeTaskUpdate, Data: map[string]any{"title": "x"}}, ErrMissingID},
		{"nil data", Change{Type: ChangeTaskUpdate}, ErrMissingID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.change.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestChange_Request(t *testing.T) {
	t.Run("task update drops id", func(t *testing.T) {
		path, body := Change{Type: ChangeTaskUpdate, Data: map[string]any{"id": "t1", "title": "Ship"}}.request()
		assert.Equal(t, "/api/tasks/t1", path)
		assert.Equal(t, map[string]any{"title": "Ship"}, body)
	})

	t.Run("project update", func(t *testing.T) {
		path, _ := Change{Type: ChangeProjectUpdate, Data: map[string]any{"id": float64(7)}}.request()
		assert.Equal(t, "/api/projects/7", path)
	})

	t.Run("feature update adds tag once", func(t *testing.T) {
		path, body := Change{Type: ChangeFeatureUpdate, Data: map[string]any{
			"id":   "t3",
			"tags": []any{"ui", "feature"},
		}}.request()
		assert.Equal(t, "/api/tasks/t3", path)
		assert.Equal(t, []string{"ui", "feature"}, body["tags"])
	})

	t.Run("feature update without tags", func(t *testing.T) {
		_, body := Change{Type: ChangeFeatureUpdate, Data: map[string]any{"id": "t4"}}.request()
		assert.Equal(t, []string{FeatureTag}, body["tags"])
	})
}
