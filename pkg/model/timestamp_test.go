package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"naive seconds", `"2024-05-01T10:00:00"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"naive micros", `"2024-05-01T10:00:00.123456"`, time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)},
		{"space separated", `"2024-05-01 10:00:00"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"rfc3339 utc", `"2024-05-01T10:00:00Z"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"rfc3339 offset", `"2024-05-01T12:00:00+02:00"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"null", `null`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}
}

func TestTimestamp_UnmarshalRejectsGarbage(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`12`), &ts))
}

func TestConversation_DecodesBackendShape(t *testing.T) {
	raw := `{"id":1,"user_id":2,"assistant_id":3,"title":"hello","created_at":"2024-05-01T10:00:00","updated_at":"2024-05-01T10:05:00.5"}`

	var c Conversation
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	assert.Equal(t, 2024, c.CreatedAt.Year())
	assert.Equal(t, 5, c.UpdatedAt.Minute())

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"created_at":"2024-05-01T10:00:00Z"`)
}
