package execctx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestContextRecords(t *testing.T) {
	ec := New(3, nil)
	require.NotEmpty(t, ec.RunID)
	assert.Equal(t, RunSucceeded, ec.Outcome())
	assert.NotNil(t, ec.Errors(), "the error collection is never nil")

	ec.RecordExecuted("A:0", time.Millisecond)
	ec.RecordFailed("B:0", errors.New("boom"), 0)
	ec.RecordSkipped("C:0", UpstreamError)

	results := ec.Results()
	require.Len(t, results, 3)
	assert.Equal(t, moduleid.ID("A:0"), results[0].Module)
	assert.Equal(t, Failed, results[1].Outcome)
	assert.Equal(t, "boom", results[1].Error)
	assert.Equal(t, UpstreamError, results[2].Reason)

	assert.True(t, ec.Touched("C:0"))
	assert.False(t, ec.Touched("D:0"))
	assert.Len(t, ec.Errors(), 1)
	assert.Equal(t, RunFailed, ec.Outcome())

	ec.Cancel()
	assert.Equal(t, RunCancelled, ec.Outcome())
	ec.Abort(errors.New("fatal"))
	ec.Abort(errors.New("second"))
	assert.EqualError(t, ec.Fatal(), "fatal")
	assert.Equal(t, RunAborted, ec.Outcome())
}

func TestRerunRequests(t *testing.T) {
	ec := New(1, nil)
	ctx := WithContext(context.Background(), ec)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	got.RequestRerun("Widget:0", cty.StringVal("drag"))

	reruns := ec.Reruns()
	require.Len(t, reruns, 1)
	assert.Equal(t, moduleid.ID("Widget:0"), reruns[0].Module)
	assert.True(t, reruns[0].Payload.RawEquals(cty.StringVal("drag")))

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
