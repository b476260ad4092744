package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunRejectsMissingArgs(t *testing.T) {
	require.Equal(t, 1, run(nil))
	require.Equal(t, 1, run([]string{"--num"}))
	require.Equal(t, 1, run([]string{"--num", "notanumber", "getconf"}))
}

func TestRunRejectsUnknownTask(t *testing.T) {
	require.Equal(t, 1, run([]string{"not-a-real-task"}))
}
