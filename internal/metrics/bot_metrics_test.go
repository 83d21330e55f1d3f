package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	cserrors "github.com/ccie14023/cataspark/internal/errors"
)

func TestRecordPoll(t *testing.T) {
	polls := testutil.ToFloat64(PollsTotal)
	failures := testutil.ToFloat64(PollErrorsTotal)

	RecordPoll(nil)
	RecordPoll(errors.New("boom"))

	if got := testutil.ToFloat64(PollsTotal) - polls; got != 2 {
		t.Fatalf("polls delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(PollErrorsTotal) - failures; got != 1 {
		t.Fatalf("poll errors delta = %v, want 1", got)
	}
}

func TestRecordCommandDefaultsToNone(t *testing.T) {
	before := testutil.ToFloat64(CommandsTotal.WithLabelValues("none"))
	RecordCommand("")
	if got := testutil.ToFloat64(CommandsTotal.WithLabelValues("none")) - before; got != 1 {
		t.Fatalf("none delta = %v, want 1", got)
	}
}

func TestRecordDeviceQueryClassifiesOutcome(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome cserrors.Kind
	}{
		{"success", nil, cserrors.KindSuccess},
		{"mismatch", cserrors.Mismatchf("no route"), cserrors.KindStructuralMismatch},
		{"transport", errors.New("connection refused"), cserrors.KindTransportFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := DeviceQueriesTotal.WithLabelValues("routes", string(tt.outcome))
			before := testutil.ToFloat64(counter)
			RecordDeviceQuery("routes", time.Now().Add(-time.Second), tt.err)
			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Fatalf("%s delta = %v, want 1", tt.outcome, got)
			}
		})
	}
}

func TestRecordChatPostAndUpload(t *testing.T) {
	ok := testutil.ToFloat64(ChatPostsTotal.WithLabelValues("success"))
	failed := testutil.ToFloat64(UploadsTotal.WithLabelValues("failed"))

	RecordChatPost(nil)
	RecordUpload(errors.New("quota"))

	if got := testutil.ToFloat64(ChatPostsTotal.WithLabelValues("success")) - ok; got != 1 {
		t.Fatalf("chat post delta = %v", got)
	}
	if got := testutil.ToFloat64(UploadsTotal.WithLabelValues("failed")) - failed; got != 1 {
		t.Fatalf("upload failure delta = %v", got)
	}
}
