package lock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnect_RejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "")
	assert.Error(t, err)

	_, err = Connect(context.Background(), "http://not-redis")
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestNewRedisLock_DefaultKey(t *testing.T) {
	l := NewRedisLock(nil, "", 0)
	assert.Equal(t, DefaultKey, l.key)
}
