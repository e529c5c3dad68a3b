package httpmiddleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhausts(t *testing.T) {
	limiter := NewSimpleTokenBucket(3, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.allow("10.0.0.1"), "request %d within capacity", i+1)
	}
	assert.False(t, limiter.allow("10.0.0.1"), "capacity exhausted")
}

func TestTokenBucketIsPerKey(t *testing.T) {
	limiter := NewSimpleTokenBucket(1, 1)

	assert.True(t, limiter.allow("10.0.0.1"))
	assert.False(t, limiter.allow("10.0.0.1"))
	assert.True(t, limiter.allow("10.0.0.2"), "other clients unaffected")
}
