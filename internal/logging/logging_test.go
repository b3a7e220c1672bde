/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	for _, lvl := range []string{"", "debug", "info", "warn", "error"} {
		log, err := New(lvl, false)
		require.NoError(t, err, lvl)
		assert.NotNil(t, log.GetSink(), lvl)
	}
}

func TestNewDebugEnablesVerbosity(t *testing.T) {
	log, err := New("debug", false)
	require.NoError(t, err)
	assert.True(t, log.V(1).Enabled())

	log, err = New("info", true)
	require.NoError(t, err)
	assert.False(t, log.V(1).Enabled())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("chatty", false)
	assert.ErrorContains(t, err, "log level")
}
