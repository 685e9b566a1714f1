// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package slice_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/gatekeeper/pkg/slice"
)

type roleName string

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"ADMIN", "USER"}, slice.Map([]string{"admin", "user"}, strings.ToUpper))
	assert.Equal(t, []roleName{"admin"}, slice.Map([]string{"admin"}, func(v string) roleName { return roleName(v) }))
	assert.Nil(t, slice.Map[string, string](nil, strings.ToUpper))
	assert.Equal(t, []string{}, slice.Map([]string{}, strings.ToUpper))
}
