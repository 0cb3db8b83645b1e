package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/storage"
)

func newOccasionService(t *testing.T) (*OccasionService, int64) {
	t.Helper()
	s, err := storage.New(filepath.Join(t.TempDir(), "luach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	u := &domain.User{Name: "Rivka"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return NewOccasionService(s), u.ID
}

func TestCreateFromHebrewDate(t *testing.T) {
	ctx := context.Background()
	svc, userID := newOccasionService(t)

	o, err := svc.Create(ctx, userID, OccasionInput{
		Name: "  Yahrzeit ", Kind: domain.KindHebrewYearly,
		HebrewYear: 5783, HebrewMonth: calendar.Adar, HebrewDay: 15, RemindDayBefore: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "Yahrzeit", o.Name)
	assert.NoError(t, o.Anchor.Consistent())
	assert.Equal(t, "2023-03-08", o.Anchor.Solar.Format("2006-01-02"))

	got, err := svc.Get(ctx, userID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Anchor.AbsDay, got.Anchor.AbsDay)
}

func TestCreateFromSolarDate(t *testing.T) {
	ctx := context.Background()
	svc, userID := newOccasionService(t)

	o, err := svc.Create(ctx, userID, OccasionInput{
		Name: "Birthday", Kind: domain.KindSecularYearly,
		Solar: time.Date(1990, time.July, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, calendar.FromGregorian(1990, time.July, 4).Abs(), o.Anchor.AbsDay)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, userID := newOccasionService(t)

	_, err := svc.Create(ctx, userID, OccasionInput{Name: "", Kind: domain.KindOneTime, HebrewYear: 5784, HebrewMonth: 1, HebrewDay: 1})
	assert.Error(t, err)

	_, err = svc.Create(ctx, userID, OccasionInput{Name: "x", Kind: "weekly", HebrewYear: 5784, HebrewMonth: 1, HebrewDay: 1})
	assert.Error(t, err)

	// Adar II does not exist in a common year.
	_, err = svc.Create(ctx, userID, OccasionInput{Name: "x", Kind: domain.KindOneTime, HebrewYear: 5785, HebrewMonth: calendar.AdarII, HebrewDay: 1})
	assert.True(t, errors.Is(err, calendar.ErrInvalidDate))

	_, err = svc.Create(ctx, userID, OccasionInput{Name: "x", Kind: domain.KindOneTime})
	assert.True(t, errors.Is(err, domain.ErrAnchorIncomplete))
}

func TestUpdateDeleteRespectOwner(t *testing.T) {
	ctx := context.Background()
	svc, userID := newOccasionService(t)

	o, err := svc.Create(ctx, userID, OccasionInput{Name: "Anniversary", Kind: domain.KindHebrewYearly,
		HebrewYear: 5770, HebrewMonth: calendar.Tishrei, HebrewDay: 1})
	require.NoError(t, err)

	_, err = svc.Update(ctx, userID+1, o.ID, OccasionInput{Name: "Stolen", Kind: domain.KindOneTime, HebrewYear: 5770, HebrewMonth: 7, HebrewDay: 1})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, userID+1, o.ID), ErrNotFound)

	updated, err := svc.Update(ctx, userID, o.ID, OccasionInput{Name: "Anniversary", Notes: "flowers",
		Kind: domain.KindHebrewYearly, HebrewYear: 5770, HebrewMonth: calendar.Tishrei, HebrewDay: 2, RemindDayOf: true})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Anchor.Day)

	list, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "flowers", list[0].Notes)

	require.NoError(t, svc.Delete(ctx, userID, o.ID))
	_, err = svc.Get(ctx, userID, o.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
