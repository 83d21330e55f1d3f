package netconf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserrors "github.com/ccie14023/cataspark/internal/errors"
	"github.com/ccie14023/cataspark/internal/normalize"
)

type fakeQuerier struct {
	replies map[string]string
	err     error
	applied []string
}

func (f *fakeQuerier) Query(_ context.Context, filter string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.replies[filter], nil
}

func (f *fakeQuerier) Apply(_ context.Context, snippet string) error {
	f.applied = append(f.applied, snippet)
	return f.err
}

func TestDeviceCPUProcesses(t *testing.T) {
	q := &fakeQuerier{replies: map[string]string{
		GetCPUProcesses: `<rpc-reply><data><cpu-usage><cpu-utilization><cpu-usage-processes>
			<cpu-usage-process><name>a</name><total-run-time>5</total-run-time></cpu-usage-process>
			<cpu-usage-process><name>b</name><total-run-time>50</total-run-time></cpu-usage-process>
		</cpu-usage-processes></cpu-utilization></cpu-usage></data></rpc-reply>`,
	}}

	stats, err := NewDevice(q).CPUProcesses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", normalize.TopByMetric(stats))
}

func TestDeviceNeighborFetchersUseDifferentFilters(t *testing.T) {
	q := &fakeQuerier{replies: map[string]string{
		GetBGPNeighbors: `<rpc-reply><data><bgp-state><neighbors>
			<neighbor><neighbor-id>10.0.0.1</neighbor-id></neighbor>
		</neighbors></bgp-state></data></rpc-reply>`,
		GetBGPNeighbor: `<rpc-reply><data><bgp-state><address-families><address-family>
			<bgp-neighbor-summaries><bgp-neighbor-summary><id>10.0.0.1</id><state>fsm-established</state></bgp-neighbor-summary></bgp-neighbor-summaries>
		</address-family></address-families></bgp-state></data></rpc-reply>`,
	}}
	d := NewDevice(q)

	neighbors, err := d.BGPNeighbors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []normalize.BGPNeighbor{{ID: "10.0.0.1"}}, neighbors)

	state, err := d.BGPNeighborState(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "fsm-established", state)
}

func TestDeviceEmptyReplyIsMismatch(t *testing.T) {
	_, err := NewDevice(&fakeQuerier{}).Routes(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, cserrors.ErrStructuralMismatch))
}

func TestDeviceTransportErrorPassesThrough(t *testing.T) {
	q := &fakeQuerier{err: cserrors.WrapTransportError("get", "192.0.2.1", errors.New("refused"))}

	_, err := NewDevice(q).MemoryProcesses(context.Background())
	assert.Equal(t, cserrors.KindTransportFailure, cserrors.KindOf(err))
}

func TestDeviceShutdownBGP(t *testing.T) {
	q := &fakeQuerier{}
	require.NoError(t, NewDevice(q).ShutdownBGP(context.Background(), "65001"))
	require.Len(t, q.applied, 1)
	assert.Contains(t, q.applied[0], "<id>65001</id>")
	assert.Contains(t, q.applied[0], "<shutdown/>")
}
