package ens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamehashVectors(t *testing.T) {
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000000", NamehashHex(""))
	assert.Equal(t, "0x93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae", NamehashHex("eth"))
	assert.Equal(t, "0xde9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f", NamehashHex("foo.eth"))
}

func TestNamehashIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, Namehash("foo.eth"), Namehash("FOO.eth"))
}

func TestFarmerName(t *testing.T) {
	name, err := FarmerName("0xAB12cd34ef56000000000000000000000000beef", "farmlink.eth")
	require.NoError(t, err)
	assert.Equal(t, "farmer-ab12cd.farmlink.eth", name)

	_, err = FarmerName("0x12", "farmlink.eth")
	assert.Error(t, err)
}
