// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package uuid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeeper/pkg/uuid"
)

func TestNew_TimeOrdered(t *testing.T) {
	first, err := uuid.New()
	require.NoError(t, err)
	second := uuid.Must()

	assert.True(t, uuid.Valid(first))
	assert.NotEqual(t, first, second)
	assert.Equal(t, byte('7'), first[14], "version nibble")
}

func TestValid(t *testing.T) {
	assert.False(t, uuid.Valid("not-a-uuid"))
	assert.True(t, uuid.Valid("01950000-0000-7000-8000-000000000001"))
}
