package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	assert.Equal(t, "Maize farm", Text("  <b>Maize</b> farm<script>alert(1)</script> "))
	assert.Equal(t, "", Text("<img src=x onerror=alert(1)>"))
	assert.Equal(t, "plain text", Text("plain text"))
}

func TestLength(t *testing.T) {
	assert.Equal(t, 5, Length("cocoa"))
	assert.Equal(t, 4, Length("café"))
}
