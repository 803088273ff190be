package broadcast

import (
	"context"
	"errors"
	"fmt"
	"testing"

	kit "teraboxbot/internal/transport"
	logx "teraboxbot/pkg/logx"
)

type scriptedSender struct {
	// errs maps chat id to the error its send attempt returns.
	errs map[int64]error

	visited []int64
	opts    []*kit.SendOptions
}

func (s *scriptedSender) SendContent(_ context.Context, to kit.ChatTarget, _ kit.Content, opt *kit.SendOptions) error {
	s.visited = append(s.visited, to.ChatID)
	s.opts = append(s.opts, opt)
	return s.errs[to.ChatID]
}

func fastEngine(sender Sender, every int) *Engine {
	return New(Config{RatePerSec: 100000, ProgressEvery: every}, sender, logx.Nop())
}

func TestRunClassifiesOutcomes(t *testing.T) {
	t.Parallel()

	recipients := make([]int64, 12)
	for i := range recipients {
		recipients[i] = int64(i + 1)
	}
	sender := &scriptedSender{errs: map[int64]error{
		3:  fmt.Errorf("%w: blocked", kit.ErrRecipientGone),
		7:  fmt.Errorf("%w: deactivated", kit.ErrRecipientGone),
		11: errors.New("internal server error"),
	}}

	var snapshots []Progress
	rep := fastEngine(sender, 5).Run(context.Background(), kit.Content{Kind: kit.ContentText, Text: "hi"},
		recipients, func(p Progress) { snapshots = append(snapshots, p) })

	if rep.Delivered != 9 {
		t.Fatalf("delivered = %d, want 9", rep.Delivered)
	}
	if rep.FailedTotal() != 3 {
		t.Fatalf("failed total = %d, want 3", rep.FailedTotal())
	}
	if rep.Unreachable != 2 || rep.Failed != 1 {
		t.Fatalf("unreachable/failed = %d/%d, want 2/1", rep.Unreachable, rep.Failed)
	}

	if len(snapshots) != 2 {
		t.Fatalf("got %d progress snapshots, want 2 (after 5th and 10th attempt)", len(snapshots))
	}
	if snapshots[0].Completed != 5 || snapshots[1].Completed != 10 {
		t.Fatalf("snapshot completions = %d, %d; want 5, 10", snapshots[0].Completed, snapshots[1].Completed)
	}
	for _, p := range snapshots {
		if p.Delivered+p.Unreachable+p.Failed != p.Completed {
			t.Fatalf("snapshot counters don't sum to completed: %+v", p)
		}
		if p.Total != 12 {
			t.Fatalf("snapshot total = %d, want 12", p.Total)
		}
	}
}

func TestRunVisitsEveryRecipientOnceInOrder(t *testing.T) {
	t.Parallel()

	recipients := []int64{5, 1, 9, 3}
	sender := &scriptedSender{}
	fastEngine(sender, 5).Run(context.Background(), kit.Content{Kind: kit.ContentText, Text: "x"}, recipients, nil)

	if len(sender.visited) != len(recipients) {
		t.Fatalf("visited %d recipients, want %d", len(sender.visited), len(recipients))
	}
	for i, id := range recipients {
		if sender.visited[i] != id {
			t.Fatalf("visit %d = chat %d, want %d", i, sender.visited[i], id)
		}
	}
}

func TestRunSendsSilently(t *testing.T) {
	t.Parallel()

	sender := &scriptedSender{}
	fastEngine(sender, 5).Run(context.Background(), kit.Content{Kind: kit.ContentText, Text: "x"}, []int64{1}, nil)

	if len(sender.opts) != 1 || sender.opts[0] == nil || !sender.opts[0].DisableNotification {
		t.Fatal("broadcast sends must disable notifications")
	}
}

func TestRunReportSumInvariant(t *testing.T) {
	t.Parallel()

	sender := &scriptedSender{errs: map[int64]error{
		2: errors.New("boom"),
		4: fmt.Errorf("%w: gone", kit.ErrRecipientGone),
	}}
	recipients := []int64{1, 2, 3, 4, 5}
	rep := fastEngine(sender, 2).Run(context.Background(), kit.Content{Kind: kit.ContentPhoto, FileID: "f"}, recipients, nil)

	if got := rep.Delivered + rep.Unreachable + rep.Failed; got != len(recipients) {
		t.Fatalf("outcome sum = %d, want %d", got, len(recipients))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sender := &scriptedSender{}
	rep := New(Config{RatePerSec: 1, ProgressEvery: 5}, sender, logx.Nop()).
		Run(ctx, kit.Content{Kind: kit.ContentText, Text: "x"}, []int64{1, 2, 3}, nil)

	if len(sender.visited) != 0 {
		t.Fatalf("visited %d recipients after cancel, want 0", len(sender.visited))
	}
	if rep.Delivered+rep.Unreachable+rep.Failed != 0 {
		t.Fatalf("report not empty after cancel: %+v", rep)
	}
}
