package scores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/robalobadob/tradle/internal/game"
	"github.com/robalobadob/tradle/internal/handshake"
)

type fakeArchive struct {
	recs []Record
	err  error
}

func (f *fakeArchive) Put(_ context.Context, rec Record) error {
	if f.err != nil {
		return f.err
	}
	f.recs = append(f.recs, rec)
	return nil
}

func TestArchiveReceivesNewReportsOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := &fakeArchive{}
	s.SetArchive(a)

	r := report("arc1", 2, true)
	r.Guesses[0].Distance = 1200
	r.User = &handshake.Identity{ID: "u9", Email: "x@example.com"}
	if err := s.Insert(ctx, r); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, r); err != nil {
		t.Fatalf("duplicate Insert: %v", err)
	}
	if len(a.recs) != 1 {
		t.Fatalf("archived %d records, want 1", len(a.recs))
	}
	rec := a.recs[0]
	if rec.ID != "arc1" || rec.Answer != "FR" || rec.Attempts != 2 || !rec.Won || rec.UserID != "u9" {
		t.Fatalf("record = %+v", rec)
	}
	if len(rec.Distances) != 2 || rec.Distances[0] != 1200 {
		t.Fatalf("distances = %v", rec.Distances)
	}
}

func TestArchiveFailureKeepsRow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.SetArchive(&fakeArchive{err: errors.New("throttled")})

	if err := s.Insert(ctx, report("arc2", 1, true)); !errors.Is(err, ErrArchive) {
		t.Fatalf("err = %v, want ErrArchive", err)
	}
	sum, err := s.Summary(ctx, "tradle", "2024-06-01")
	if err != nil || sum.Plays != 1 {
		t.Fatalf("row not kept: %+v, %v", sum, err)
	}
}

func TestRecordAttributes(t *testing.T) {
	rec := newRecord(game.Report{
		ID: "r", Game: "tradle", Date: "2024-06-01",
		SubmittedAt: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		Guesses:     make([]game.Guess, 3),
	}, "")
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		t.Fatalf("MarshalMap: %v", err)
	}
	if v, ok := item["id"].(*types.AttributeValueMemberS); !ok || v.Value != "r" {
		t.Fatalf("id attribute = %#v", item["id"])
	}
	if v, ok := item["attempts"].(*types.AttributeValueMemberN); !ok || v.Value != "3" {
		t.Fatalf("attempts attribute = %#v", item["attempts"])
	}
	if _, ok := item["user_id"]; ok {
		t.Fatalf("empty user_id should be omitted")
	}
	if _, ok := item["ip_hash"]; ok {
		t.Fatalf("empty ip_hash should be omitted")
	}
}
