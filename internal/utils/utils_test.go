package utils

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	key := []byte("secret")
	token, err := CreateTokenFromData(TokenData{UID: "u1", Email: "a@b.c"}, time.Now().Add(time.Hour), key)
	require.NoError(t, err)

	data, err := GetDataFromToken("Bearer "+token, key)
	require.NoError(t, err)
	assert.Equal(t, "u1", data.UID)
	assert.Equal(t, "a@b.c", data.Email)

	t.Run("wrong key", func(t *testing.T) {
		_, err := GetDataFromToken(token, []byte("other"))
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		old, err := CreateTokenFromData(TokenData{UID: "u1"}, time.Now().Add(-time.Minute), key)
		require.NoError(t, err)
		_, err = GetDataFromToken(old, key)
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := GetDataFromToken("Bearer ", key)
		assert.Error(t, err)
	})

	t.Run("missing uid", func(t *testing.T) {
		noUID, err := CreateTokenFromData(TokenData{Email: "a@b.c"}, time.Now().Add(time.Hour), key)
		require.NoError(t, err)
		_, err = GetDataFromToken(noUID, key)
		assert.ErrorContains(t, err, "uid")
	})
}

func TestGeminiGetCleanedJsonResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"plain", `{"summary": "ok"}`},
		{"fenced", "```json\n{\"summary\": \"ok\"}\n```"},
		{"trailing comma", "{\"summary\": \"ok\",\n}"},
		{"chatter around", "Aqui está:\n{\"summary\": \"ok\"}\nBoa sorte!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out map[string]string
			require.NoError(t, json.Unmarshal([]byte(GeminiGetCleanedJsonResponse(tt.in)), &out))
			assert.Equal(t, "ok", out["summary"])
		})
	}

	t.Run("nested trailing commas", func(t *testing.T) {
		var out map[string][]int
		in := "{\"numbers\": [1, 2, 3,],}"
		require.NoError(t, json.Unmarshal([]byte(GeminiGetCleanedJsonResponse(in)), &out))
		assert.Equal(t, []int{1, 2, 3}, out["numbers"])
	})
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "escorpiao", NormalizeKey(" Escorpião "))
	assert.Equal(t, "gemeos", NormalizeKey("GÊMEOS"))
	assert.Equal(t, "sagitario", NormalizeKey("Sagitário"))
}
