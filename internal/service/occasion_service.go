package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/storage"
)

var ErrNotFound = errors.New("not found")

// OccasionInput describes an occasion to create or update. The anchor comes
// from the Hebrew components when HebrewYear is set, otherwise from Solar.
type OccasionInput struct {
	Name            string
	Notes           string
	Kind            domain.OccasionKind
	HebrewYear      int
	HebrewMonth     int
	HebrewDay       int
	Solar           time.Time
	RemindDayOf     bool
	RemindDayBefore bool
	BackColor       string
	TextColor       string
}

func (in OccasionInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Kind, validation.Required, validation.By(func(any) error {
			if !in.Kind.Valid() {
				return domain.ErrUnknownKind
			}
			return nil
		})),
		validation.Field(&in.Notes, validation.Length(0, 2000)),
	)
}

func (in OccasionInput) anchor() (domain.Anchor, error) {
	if in.HebrewYear != 0 {
		d, err := calendar.New(in.HebrewYear, in.HebrewMonth, in.HebrewDay)
		if err != nil {
			return domain.Anchor{}, err
		}
		return domain.AnchorFromDate(d), nil
	}
	if !in.Solar.IsZero() {
		return domain.AnchorFromDate(calendar.FromTime(in.Solar)), nil
	}
	return domain.Anchor{}, domain.ErrAnchorIncomplete
}

type OccasionService struct {
	storage *storage.Storage
}

func NewOccasionService(s *storage.Storage) *OccasionService {
	return &OccasionService{storage: s}
}

func (s *OccasionService) Create(ctx context.Context, userID int64, in OccasionInput) (*domain.Occasion, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("validate occasion: %w", err)
	}
	anchor, err := in.anchor()
	if err != nil {
		return nil, fmt.Errorf("occasion date: %w", err)
	}

	o := &domain.Occasion{ID: uuid.NewString(), UserID: userID}
	apply(o, in, anchor)
	if err := s.storage.CreateOccasion(ctx, o); err != nil {
		return nil, fmt.Errorf("create occasion: %w", err)
	}
	return o, nil
}

func (s *OccasionService) Update(ctx context.Context, userID int64, id string, in OccasionInput) (*domain.Occasion, error) {
	o, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("validate occasion: %w", err)
	}
	anchor, err := in.anchor()
	if err != nil {
		return nil, fmt.Errorf("occasion date: %w", err)
	}

	apply(o, in, anchor)
	if err := s.storage.UpdateOccasion(ctx, o); err != nil {
		return nil, fmt.Errorf("update occasion: %w", err)
	}
	return o, nil
}

// Get returns the user's occasion or ErrNotFound.
func (s *OccasionService) Get(ctx context.Context, userID int64, id string) (*domain.Occasion, error) {
	o, err := s.storage.GetOccasion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get occasion: %w", err)
	}
	if o == nil || o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *OccasionService) List(ctx context.Context, userID int64) ([]*domain.Occasion, error) {
	return s.storage.ListOccasions(ctx, userID)
}

func (s *OccasionService) Delete(ctx context.Context, userID int64, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.storage.DeleteOccasion(ctx, id)
}

func apply(o *domain.Occasion, in OccasionInput, anchor domain.Anchor) {
	o.Name = in.Name
	o.Notes = strings.TrimSpace(in.Notes)
	o.Kind = in.Kind
	o.Anchor = anchor
	o.RemindDayOf = in.RemindDayOf
	o.RemindDayBefore = in.RemindDayBefore
	o.BackColor = in.BackColor
	o.TextColor = in.TextColor
}
