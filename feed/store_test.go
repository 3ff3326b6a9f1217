package feed

import (
	"sync"
	"testing"
)

func TestStore_PrependAndFilter(t *testing.T) {
	s := NewStore(nil)
	ev, an := eventPost(t), announcementPost(t)
	s.Prepend(ev)
	s.Prepend(an)

	all := s.Posts()
	if len(all) != 2 || all[0].ID != an.ID {
		t.Fatalf("newest post should come first: %v", all)
	}
	events := s.Filter(TypeEvent)
	if len(events) != 1 || events[0].ID != ev.ID {
		t.Errorf("Filter(event) = %v", events)
	}
	if got := s.Filter(TypeLostFound); len(got) != 0 {
		t.Errorf("Filter(lost_found) = %v", got)
	}

	s.Prepend(ev)
	if s.Len() != 2 {
		t.Errorf("re-inserting an id duplicated it: %d", s.Len())
	}
}

func TestStore_ReadsAreCopies(t *testing.T) {
	s := NewStore(nil)
	ev := eventPost(t)
	s.Replace([]Post{ev})

	got, _ := s.Get(ev.ID)
	got.Reactions[ReactionFire] = 99
	got.Event.Responses[ResponseGoing] = 99

	again, _ := s.Get(ev.ID)
	if again.Reactions[ReactionFire] != 0 || again.Event.Responses[ResponseGoing] != 0 {
		t.Error("store state leaked through a read")
	}
}

func TestStore_Toggles(t *testing.T) {
	s := NewStore(NewMemoryLedger())
	ev := eventPost(t)
	s.Replace([]Post{ev})

	if _, ok := s.ToggleReaction(ev.ID, "u1", ReactionHeart); !ok {
		t.Fatal("ToggleReaction reported no change")
	}
	p, _ := s.ToggleRSVP(ev.ID, "u1", ResponseGoing)
	if p.Reactions[ReactionHeart] != 1 || p.Event.Responses[ResponseGoing] != 1 {
		t.Errorf("unexpected counts: %v %v", p.Reactions, p.Event.Responses)
	}

	c := NewComment("hi", Author{ID: "u2"}, testNow)
	s.AddComment(ev.ID, c)
	if _, ok := s.ToggleCommentReaction(ev.ID, c.ID, "u1", ReactionWow); !ok {
		t.Error("comment reaction not applied")
	}
	if _, ok := s.AddReply(ev.ID, "comment_missing", NewReply("x", Author{}, testNow)); ok {
		t.Error("reply to missing parent applied")
	}
	if _, ok := s.DeleteComment(ev.ID, c.ID); !ok {
		t.Error("DeleteComment failed")
	}

	if _, ok := s.ToggleReaction("post_missing", "u1", ReactionHeart); ok {
		t.Error("toggle on missing post reported success")
	}
	if !s.Delete(ev.ID) || s.Delete(ev.ID) {
		t.Error("Delete should succeed once")
	}
}

func TestStore_ConcurrentToggles(t *testing.T) {
	s := NewStore(NewMemoryLedger())
	ev := eventPost(t)
	s.Replace([]Post{ev})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.ToggleReaction(ev.ID, string(rune('a'+i%26))+string(rune('A'+i/26)), ReactionFire)
		}(i)
	}
	wg.Wait()

	p, _ := s.Get(ev.ID)
	if p.Reactions[ReactionFire] != 50 {
		t.Errorf("got %d fires, want 50", p.Reactions[ReactionFire])
	}
}
