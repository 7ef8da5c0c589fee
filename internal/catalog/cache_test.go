package catalog

import (
	"errors"
	"testing"

	"github.com/fixbot-io/fixbot/internal/ticket"
)

type fakeSource struct {
	engineers []ticket.Engineer
	exhibits  []ticket.Exhibit
	fail      bool
}

func (f *fakeSource) ListEngineers() ([]ticket.Engineer, error) {
	if f.fail {
		return nil, errors.New("backend unreachable")
	}
	return f.engineers, nil
}

func (f *fakeSource) ListExhibits() ([]ticket.Exhibit, error) {
	if f.fail {
		return nil, errors.New("backend unreachable")
	}
	return f.exhibits, nil
}

func TestRefresh(t *testing.T) {
	src := &fakeSource{
		engineers: []ticket.Engineer{{ChatID: 1, Name: "Boris"}},
		exhibits: []ticket.Exhibit{
			{Name: "Telescope", Problems: []string{"won't rotate", "lens cracked"}},
		},
	}
	c := New(src, nil)

	if c.IsEngineer(1) {
		t.Error("engineer known before first refresh")
	}
	if err := c.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if !c.IsEngineer(1) {
		t.Error("engineer missing after refresh")
	}
	if c.EngineerName(1) != "Boris" {
		t.Errorf("name = %q", c.EngineerName(1))
	}
	if got := c.Problems("Telescope"); len(got) != 2 || got[0] != "won't rotate" {
		t.Errorf("problems = %v", got)
	}
	if c.Problems("Pendulum") != nil {
		t.Error("unknown exhibit returned problems")
	}
}

func TestRefresh_FailureKeepsSnapshot(t *testing.T) {
	src := &fakeSource{
		engineers: []ticket.Engineer{{ChatID: 1, Name: "Boris"}},
		exhibits:  []ticket.Exhibit{{Name: "Telescope"}},
	}
	c := New(src, nil)
	if err := c.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	src.fail = true
	if err := c.Refresh(); err == nil {
		t.Fatal("expected refresh error")
	}

	if !c.IsEngineer(1) {
		t.Error("prior roster lost after failed refresh")
	}
	if len(c.Exhibits()) != 1 {
		t.Error("prior catalog lost after failed refresh")
	}
}
