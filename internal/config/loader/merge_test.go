package loader

import (
	"reflect"
	"testing"
)

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name string
		dst  map[string]any
		src  map[string]any
		want map[string]any
	}{
		{
			name: "nil dst",
			src:  map[string]any{"logging": map[string]any{"level": "warn"}},
			want: map[string]any{"logging": map[string]any{"level": "warn"}},
		},
		{
			name: "nil src",
			dst:  map[string]any{"logging": map[string]any{"level": "info"}},
			want: map[string]any{"logging": map[string]any{"level": "info"}},
		},
		{
			name: "sections merge key by key",
			dst:  map[string]any{"plugins": map[string]any{"cache_size": int64(64), "search_paths": []any{"a"}}},
			src:  map[string]any{"plugins": map[string]any{"cache_size": int64(8)}},
			want: map[string]any{"plugins": map[string]any{"cache_size": int64(8), "search_paths": []any{"a"}}},
		},
		{
			name: "lists replace",
			dst:  map[string]any{"commands": map[string]any{"search_paths": []any{"user"}}},
			src:  map[string]any{"commands": map[string]any{"search_paths": []any{"project"}}},
			want: map[string]any{"commands": map[string]any{"search_paths": []any{"project"}}},
		},
		{
			name: "scalar replaces section",
			dst:  map[string]any{"descriptor": map[string]any{"name": "x"}},
			src:  map[string]any{"descriptor": "team"},
			want: map[string]any{"descriptor": "team"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeepMerge(tt.dst, tt.src); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DeepMerge() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClone(t *testing.T) {
	original := map[string]any{
		"logging": map[string]any{"level": "info"},
		"plugins": map[string]any{"search_paths": []any{"a", map[string]any{"k": "v"}}},
		"names":   []string{"x"},
	}

	cloned := Clone(original)
	if !reflect.DeepEqual(cloned, original) {
		t.Fatalf("Clone() = %v, want %v", cloned, original)
	}

	original["logging"].(map[string]any)["level"] = "debug"
	paths := original["plugins"].(map[string]any)["search_paths"].([]any)
	paths[0] = "changed"
	paths[1].(map[string]any)["k"] = "changed"
	original["names"].([]string)[0] = "changed"

	if v := cloned["logging"].(map[string]any)["level"]; v != "info" {
		t.Errorf("cloned logging.level = %v, want info", v)
	}
	clonedPaths := cloned["plugins"].(map[string]any)["search_paths"].([]any)
	if clonedPaths[0] != "a" || clonedPaths[1].(map[string]any)["k"] != "v" {
		t.Errorf("cloned search_paths = %v", clonedPaths)
	}
	if cloned["names"].([]string)[0] != "x" {
		t.Errorf("cloned names = %v", cloned["names"])
	}

	if Clone(nil) != nil {
		t.Error("Clone(nil) != nil")
	}
}
