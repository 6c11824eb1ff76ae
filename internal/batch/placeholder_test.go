package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	vars := map[string]string{"inc": "abc123", "task_1": "t9"}

	tests := []struct {
		name    string
		payload map[string]any
		want    map[string]any
	}{
		{
			name:    "whole value",
			payload: map[string]any{"parent": "${inc}"},
			want:    map[string]any{"parent": "abc123"},
		},
		{
			name:    "embedded in text",
			payload: map[string]any{"note": "see ${inc} and ${task_1}."},
			want:    map[string]any{"note": "see abc123 and t9."},
		},
		{
			name:    "non-string values untouched",
			payload: map[string]any{"priority": 2, "active": true, "nested": map[string]any{"ref": "${inc}"}},
			want:    map[string]any{"priority": 2, "active": true, "nested": map[string]any{"ref": "${inc}"}},
		},
		{
			name:    "unterminated token kept literally",
			payload: map[string]any{"note": "cost ${inc"},
			want:    map[string]any{"note": "cost ${inc"},
		},
		{
			name:    "malformed name kept literally",
			payload: map[string]any{"note": "${} ${a b} ${inc}"},
			want:    map[string]any{"note": "${} ${a b} abc123"},
		},
		{
			name:    "token after malformed name",
			payload: map[string]any{"note": "see ${x ${inc}"},
			want:    map[string]any{"note": "see ${x abc123"},
		},
		{
			name:    "plain dollar",
			payload: map[string]any{"amount": "$5"},
			want:    map[string]any{"amount": "$5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Substitute(tt.payload, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubstitute_DoesNotModifyInput(t *testing.T) {
	payload := map[string]any{"parent": "${inc}"}

	got, err := Substitute(payload, map[string]string{"inc": "x"})
	require.NoError(t, err)

	assert.Equal(t, "x", got["parent"])
	assert.Equal(t, "${inc}", payload["parent"])
}

func TestSubstitute_Unresolved(t *testing.T) {
	_, err := Substitute(map[string]any{"parent": "${missing}"}, map[string]string{"inc": "x"})

	var ref *UnresolvedReferenceError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, "missing", ref.Name)
	assert.Contains(t, err.Error(), "${missing}")
}

func TestSubstitute_UnresolvedFirstField(t *testing.T) {
	payload := map[string]any{
		"parent":      "${zz}",
		"assigned_to": "${yy}",
		"caller":      "${xx}",
	}
	for range 20 {
		_, err := Substitute(payload, nil)

		var ref *UnresolvedReferenceError
		require.ErrorAs(t, err, &ref)
		assert.Equal(t, "yy", ref.Name)
	}
}

func TestSubstitute_NilPayload(t *testing.T) {
	got, err := Substitute(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
