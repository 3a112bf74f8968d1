package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()

	ctxWithSession := WithSessionID(ctx, "sess-001")
	sessionID, ok := GetSessionID(ctxWithSession)
	assert.True(t, ok)
	assert.Equal(t, "sess-001", sessionID)

	ctxWithDomain := WithDomainKey(ctx, "csvtool:local")
	domainKey, ok := GetDomainKey(ctxWithDomain)
	assert.True(t, ok)
	assert.Equal(t, "csvtool:local", domainKey)

	_, ok = GetSessionID(ctx)
	assert.False(t, ok)
	_, ok = GetDomainKey(ctx)
	assert.False(t, ok)
}
