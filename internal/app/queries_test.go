package app_test

import (
	"context"
	"errors"
	"testing"

	"poi_ingest/internal/app"
	"poi_ingest/internal/domain"
)

func TestLookupPOIs(t *testing.T) {
	repo := &fakeRepo{}
	if _, err := repo.InsertBatch(context.Background(), []domain.POI{
		{InternalID: "7", Name: "a"}, {InternalID: "8", Name: "b"}, {InternalID: "7", Name: "c"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	q := app.NewQueryService(repo, nil)

	got, err := q.LookupPOIs(context.Background(), "7")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Fatalf("unexpected: %+v", got)
	}

	if _, err := q.LookupPOIs(context.Background(), "9"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	for _, blank := range []string{"", "   "} {
		if _, err := q.LookupPOIs(context.Background(), blank); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("want ErrNotFound for blank id %q, got %v", blank, err)
		}
	}

	n, err := q.CountPOIs(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestLookupPOIs_MatchesIDVerbatim(t *testing.T) {
	repo := &fakeRepo{}
	if _, err := repo.InsertBatch(context.Background(), []domain.POI{
		{InternalID: " 7", Name: "padded"}, {InternalID: "7", Name: "plain"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	q := app.NewQueryService(repo, nil)

	got, err := q.LookupPOIs(context.Background(), " 7")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 1 || got[0].Name != "padded" {
		t.Fatalf("padded lookup: %+v", got)
	}

	got, err = q.LookupPOIs(context.Background(), "7")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 1 || got[0].Name != "plain" {
		t.Fatalf("plain lookup: %+v", got)
	}

	if _, err := q.LookupPOIs(context.Background(), "7 "); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound for unseen spelling, got %v", err)
	}
}

func TestImportStatus(t *testing.T) {
	st := &fakeStatus{}
	_ = st.Finish(context.Background(), "done", nil)
	q := app.NewQueryService(&fakeRepo{}, st)

	s, err := q.ImportStatus(context.Background(), "done")
	if err != nil || s.State != domain.JobSucceeded {
		t.Fatalf("status = %+v, %v", s, err)
	}
	if _, err := q.ImportStatus(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := app.NewQueryService(&fakeRepo{}, nil).ImportStatus(context.Background(), "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound without a store")
	}
}
