package handler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dentline/frontdesk/internal/identity"
	"github.com/dentline/frontdesk/internal/model"
	"github.com/dentline/frontdesk/internal/saga"
)

const trialDays = 14

type onboardInput struct {
	Email        string
	Password     string
	PracticeName string
	OwnerName    string
	Phone        string
	Plan         model.PracticePlan
	Status       model.PracticeStatus
}

// onboardPractice creates an identity, a practice, and the membership tying
// them together as one logical unit. The identity store and the relational
// rows cannot share a transaction, so the unit runs as a saga: a failure at
// any step undoes the earlier steps with compensating deletes.
//
// The email conflict is pre-checked rather than inferred from a constraint
// failure: a partial failure after identity creation would otherwise leave
// an orphan that blocks every future attempt with that email.
func (h *Handler) onboardPractice(ctx context.Context, log *zap.Logger, in onboardInput) (*model.Practice, *model.ClientUser, error) {
	taken, err := h.emailTaken(ctx, in.Email)
	if err != nil {
		return nil, nil, err
	}
	if taken {
		return nil, nil, identity.ErrEmailExists
	}

	// Practice and membership rows are written through the elevated
	// connection: onboarding happens before the new tenant's own credential
	// exists.
	elevated, err := h.elevated()
	if err != nil {
		return nil, nil, err
	}

	plan := in.Plan
	if plan == "" {
		plan = model.PlanFreeTrial
	}
	status := in.Status
	if status == "" {
		status = model.PracticeStatusOnboarding
	}

	var (
		ident    *identity.Identity
		practice model.Practice
		member   model.ClientUser
	)

	s := saga.New("onboard_practice", log)

	// Identity first: it is the hardest to orphan-detect, so it must be the
	// first thing compensated away.
	s.AddStep(saga.Step{
		Name: "create_identity",
		Action: func(ctx context.Context) error {
			var err error
			ident, err = h.identity.CreateUser(ctx, in.Email, in.Password, true)
			return err
		},
		Compensate: func(ctx context.Context) error {
			return h.identity.DeleteUser(ctx, ident.ID)
		},
	})

	s.AddStep(saga.Step{
		Name: "create_practice",
		Action: func(ctx context.Context) error {
			practice = model.Practice{
				Name:      in.PracticeName,
				OwnerName: in.OwnerName,
				Email:     ident.Email,
				Phone:     in.Phone,
				Status:    status,
				Plan:      plan,
			}
			if plan == model.PlanFreeTrial {
				ends := time.Now().AddDate(0, 0, trialDays)
				practice.TrialEndsAt = &ends
			}
			return elevated.WithContext(ctx).Create(&practice).Error
		},
		Compensate: func(ctx context.Context) error {
			return elevated.WithContext(ctx).Unscoped().Delete(&model.Practice{}, practice.ID).Error
		},
	})

	s.AddStep(saga.Step{
		Name: "create_membership",
		Action: func(ctx context.Context) error {
			member = model.ClientUser{
				ID:         ident.ID,
				Email:      ident.Email,
				Role:       model.ClientRoleOwner,
				PracticeID: practice.ID,
			}
			return elevated.WithContext(ctx).Create(&member).Error
		},
		Compensate: func(ctx context.Context) error {
			return elevated.WithContext(ctx).Unscoped().Delete(&model.ClientUser{}, member.ID).Error
		},
	})

	if err := s.Execute(ctx); err != nil {
		return nil, nil, fmt.Errorf("onboard practice: %w", err)
	}

	log.Info("practice onboarded",
		zap.Uint("practice_id", practice.ID),
		zap.Uint("identity_id", ident.ID),
		zap.String("plan", string(plan)))

	return &practice, &member, nil
}

// emailTaken checks the identity store and both attachment tables so a
// conflict surfaces before anything destructive happens. Counts include
// soft-deleted rows: the unique email indexes still cover tombstones, so a
// tombstone blocks creation exactly like a live row and must report as taken
// rather than fail the saga mid-flight.
func (h *Handler) emailTaken(ctx context.Context, email string) (bool, error) {
	exists, err := h.identity.EmailExists(ctx, email)
	if err != nil || exists {
		return exists, err
	}

	elevated, err := h.elevated()
	if err != nil {
		return false, err
	}

	var count int64
	err = attachmentsByEmail(elevated.WithContext(ctx), &model.ClientUser{}, email).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	err = attachmentsByEmail(elevated.WithContext(ctx), &model.AdminUser{}, email).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// attachmentsByEmail scopes an attachment table to an email address with
// soft-deleted rows included.
func attachmentsByEmail(db *gorm.DB, table interface{}, email string) *gorm.DB {
	return db.Unscoped().Model(table).Where("email = ?", email)
}
