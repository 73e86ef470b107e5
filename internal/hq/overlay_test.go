package hq_test

import (
	"context"
	"testing"

	"hadiqa-go/internal/hq"
	"hadiqa-go/internal/testutil"
)

type sinkCall struct {
	action   string
	id       string
	progress float64
}

type recordingSink struct {
	calls []sinkCall
}

func (s *recordingSink) Like(_ context.Context, id string) error {
	s.calls = append(s.calls, sinkCall{action: "like", id: id})
	return nil
}

func (s *recordingSink) Dislike(_ context.Context, id string) error {
	s.calls = append(s.calls, sinkCall{action: "dislike", id: id})
	return nil
}

func (s *recordingSink) Save(_ context.Context, id string) error {
	s.calls = append(s.calls, sinkCall{action: "save", id: id})
	return nil
}

func (s *recordingSink) RecordProgress(_ context.Context, id string, p float64) error {
	s.calls = append(s.calls, sinkCall{action: "progress", id: id, progress: p})
	return nil
}

func shorts() []hq.VideoEntry {
	return []hq.VideoEntry{testutil.Short("s1", "1"), testutil.Short("s2", "2"), testutil.Short("s3", "3")}
}

func TestShortsOverlay(t *testing.T) {
	ctx := context.Background()

	t.Run("seeded at initial entry", func(t *testing.T) {
		list := shorts()
		o := hq.NewShortsOverlay(list[1], list, &recordingSink{})
		if o.Index() != 1 || o.Current().ID != "s2" {
			t.Errorf("index=%d current=%s", o.Index(), o.Current().ID)
		}
	})

	t.Run("missing initial is put at the head", func(t *testing.T) {
		o := hq.NewShortsOverlay(testutil.Short("zz", "z"), shorts(), &recordingSink{})
		if o.Index() != 0 || o.Current().ID != "zz" {
			t.Errorf("index=%d current=%s, want zz at 0", o.Index(), o.Current().ID)
		}
		if o.Len() != len(shorts())+1 {
			t.Errorf("Len() = %d, want %d", o.Len(), len(shorts())+1)
		}
		if !o.Next() || o.Current().ID != "s1" {
			t.Errorf("Next() should reach the feed list, current=%s", o.Current().ID)
		}
	})

	t.Run("empty list plays initial alone", func(t *testing.T) {
		o := hq.NewShortsOverlay(testutil.Short("zz", "z"), nil, &recordingSink{})
		if o.Len() != 1 || o.Current().ID != "zz" {
			t.Errorf("len=%d current=%s", o.Len(), o.Current().ID)
		}
	})

	t.Run("scroll bounds do not wrap", func(t *testing.T) {
		list := shorts()
		o := hq.NewShortsOverlay(list[2], list, &recordingSink{})
		if o.Next() {
			t.Error("Next() past the end should be ignored")
		}
		if !o.ScrollTo(0) || o.Previous() {
			t.Error("scroll to start then Previous() should be ignored")
		}
		if o.ScrollTo(7) || o.ScrollTo(-1) || o.Current().ID != "s1" {
			t.Error("out-of-range scroll changed current")
		}
	})

	t.Run("progress only reported for current entry", func(t *testing.T) {
		list := shorts()
		sink := &recordingSink{}
		o := hq.NewShortsOverlay(list[0], list, sink)

		if ok, _ := o.ReportProgress(ctx, "s2", 0.5); ok {
			t.Error("off-screen progress accepted")
		}
		if ok, _ := o.ReportProgress(ctx, "s1", 0.5); !ok {
			t.Error("current progress dropped")
		}
		if len(sink.calls) != 1 || sink.calls[0].id != "s1" {
			t.Errorf("calls = %+v", sink.calls)
		}
	})

	t.Run("actions target current entry", func(t *testing.T) {
		list := shorts()
		sink := &recordingSink{}
		o := hq.NewShortsOverlay(list[0], list, sink)
		o.Next()
		o.Like(ctx)
		o.Save(ctx)
		o.Dislike(ctx)
		for _, c := range sink.calls {
			if c.id != "s2" {
				t.Errorf("%s went to %s", c.action, c.id)
			}
		}
	})
}

func TestLongOverlay(t *testing.T) {
	ctx := context.Background()
	list := []hq.VideoEntry{testutil.Long("l1", "1"), testutil.Long("l2", "2"), testutil.Long("l3", "3")}

	t.Run("suggestions exclude playing entry", func(t *testing.T) {
		o := hq.NewLongOverlay(list[1], list, &recordingSink{})
		if got := ids(o.Suggestions()); len(got) != 2 || got[0] != "l1" || got[1] != "l3" {
			t.Errorf("Suggestions() = %v", got)
		}
	})

	t.Run("ended advances to first suggestion", func(t *testing.T) {
		o := hq.NewLongOverlay(list[0], list, &recordingSink{})
		next, looped := o.Ended()
		if looped || next.ID != "l2" || o.Current().ID != "l2" {
			t.Errorf("Ended() = %s, looped=%v", next.ID, looped)
		}
		next, _ = o.Ended()
		if next.ID != "l1" {
			t.Errorf("second Ended() = %s, want l1", next.ID)
		}
	})

	t.Run("ended loops when no suggestions", func(t *testing.T) {
		o := hq.NewLongOverlay(list[0], list[:1], &recordingSink{})
		next, looped := o.Ended()
		if !looped || next.ID != "l1" {
			t.Errorf("Ended() = %s, looped=%v", next.ID, looped)
		}
	})

	t.Run("forwards to sink", func(t *testing.T) {
		sink := &recordingSink{}
		o := hq.NewLongOverlay(list[0], list, sink)
		o.Switch(list[2])
		o.ReportProgress(ctx, 0.3)
		o.Like(ctx)
		if len(sink.calls) != 2 || sink.calls[0].id != "l3" || sink.calls[0].progress != 0.3 {
			t.Errorf("calls = %+v", sink.calls)
		}
	})
}
