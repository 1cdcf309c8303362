package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	png, err := Generate("order-123", "https://shop.example.com/")
	require.NoError(t, err)
	require.NotEmpty(t, png)

	// PNG magic bytes
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestGenerate_RequiresOrderID(t *testing.T) {
	_, err := Generate("", "https://shop.example.com")
	assert.Error(t, err)
}
