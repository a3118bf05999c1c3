/*
Copyright 2026 The UniDrop Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(NewNetworkError("boom")))
	require.True(t, IsRetryable(NewTimeoutError("boom")))
	require.True(t, IsRetryable(NewConnectionError("boom")))
	require.False(t, IsRetryable(NewRejectedError("boom")))
	require.False(t, IsRetryable(NewCancelledError("boom")))
	require.False(t, IsRetryable(errors.New("plain error")))
}

func TestIsUserCancelled(t *testing.T) {
	require.True(t, IsUserCancelled(NewRejectedError("no")))
	require.True(t, IsUserCancelled(NewCancelledError("stop")))
	require.False(t, IsUserCancelled(NewNetworkError("boom")))
}

func TestGetCategory(t *testing.T) {
	require.Equal(t, CategoryDeviceNotFound, GetCategory(NewDeviceNotFoundError("abc")))
	require.Equal(t, CategoryInternal, GetCategory(errors.New("untyped")))
}

func TestError_UnwrapPreservesCause(t *testing.T) {
	base := errors.New("disk full")
	wrapped := WrapIO(base, "writing file")
	require.ErrorIs(t, wrapped, base)
	require.Equal(t, CategoryIO, GetCategory(wrapped))
}

func TestWrapIO_NilReturnsNil(t *testing.T) {
	require.Nil(t, WrapIO(nil, "whatever"))
}
