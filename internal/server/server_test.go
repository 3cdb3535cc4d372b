package server

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBodyLimit(t *testing.T) {
	tests := []struct {
		name  string
		maxMB int64
	}{
		{"one megabyte", 1},
		{"default", 10},
		{"large", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := int(tt.maxMB * 1024 * 1024)
			encoded := base64.StdEncoding.EncodedLen(raw)

			limit := BodyLimit(tt.maxMB)
			assert.Greater(t, limit, encoded+len(`{"image":"data:image/png;base64,"}`))
			assert.Less(t, limit, encoded+1024*1024)
		})
	}
}
