// Package tokens issues and redeems the one-time links in task emails that let
// an assignee confirm or decline without signing in.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kluncker/rockville-cg-app/internal/apperr"
	"github.com/Kluncker/rockville-cg-app/internal/lifecycle"
	"github.com/Kluncker/rockville-cg-app/internal/logging"
	"github.com/Kluncker/rockville-cg-app/internal/models"
	"github.com/Kluncker/rockville-cg-app/internal/store"
)

const DefaultTTL = 30 * 24 * time.Hour

// tokenBytes gives 256 bits of randomness per token.
const tokenBytes = 32

// Issuer mints token pairs. It has no dependency on the lifecycle manager so
// the manager can use it.
type Issuer struct {
	store store.TokenStore
	ttl   time.Duration

	Now func() time.Time
}

func NewIssuer(st store.TokenStore, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{store: st, ttl: ttl, Now: time.Now}
}

// Mint stores a confirm and a decline token for the task and user.
func (i *Issuer) Mint(ctx context.Context, taskID, userID, userEmail string) (models.TokenPair, error) {
	now := i.Now()
	pair := models.TokenPair{}
	for _, action := range []string{models.ActionConfirm, models.ActionDecline} {
		tok, err := newToken()
		if err != nil {
			return models.TokenPair{}, err
		}
		rec := models.ActionToken{
			Token:     tok,
			TaskID:    taskID,
			UserID:    userID,
			UserEmail: userEmail,
			Action:    action,
			CreatedAt: now.UnixMilli(),
			ExpiresAt: now.Add(i.ttl).UnixMilli(),
		}
		if err := i.store.PutToken(ctx, rec); err != nil {
			return models.TokenPair{}, fmt.Errorf("put %s token: %w", action, err)
		}
		if action == models.ActionConfirm {
			pair.Confirm = tok
		} else {
			pair.Decline = tok
		}
	}
	return pair, nil
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Lifecycle is the part of the lifecycle manager a redeemed token drives.
type Lifecycle interface {
	Confirm(ctx context.Context, taskID, userID string) (lifecycle.Result, error)
	Decline(ctx context.Context, taskID, userID string) (lifecycle.Result, error)
}

// Outcome is what a redemption reports back to the person who clicked.
type Outcome struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	AlreadyConfirmed bool   `json:"already_confirmed,omitempty"`
	Action           string `json:"action,omitempty"`
	TaskID           string `json:"task_id,omitempty"`
}

type Service struct {
	*Issuer

	tokens store.TokenStore
	tasks  store.TaskStore
	lc     Lifecycle
	log    logrus.FieldLogger
}

func NewService(iss *Issuer, st store.Store, lc Lifecycle, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		Issuer: iss,
		tokens: st,
		tasks:  st,
		lc:     lc,
		log:    logging.Component(log, "tokens"),
	}
}

// Redeem spends a token of either kind.
func (s *Service) Redeem(ctx context.Context, token string) (Outcome, error) {
	return s.redeem(ctx, token, "")
}

// ConfirmByToken only accepts confirm tokens.
func (s *Service) ConfirmByToken(ctx context.Context, token string) (Outcome, error) {
	return s.redeem(ctx, token, models.ActionConfirm)
}

// DeclineByToken only accepts decline tokens.
func (s *Service) DeclineByToken(ctx context.Context, token string) (Outcome, error) {
	return s.redeem(ctx, token, models.ActionDecline)
}

func (s *Service) redeem(ctx context.Context, token, want string) (Outcome, error) {
	if token == "" {
		return Outcome{}, apperr.New(apperr.InvalidArgument, "token is required")
	}

	// unknown and already used tokens are indistinguishable to the caller
	rec, err := s.tokens.FindUnusedToken(ctx, token)
	if err != nil {
		return Outcome{}, fmt.Errorf("find token: %w", err)
	}
	if rec == nil || (want != "" && rec.Action != want) {
		return Outcome{}, apperr.New(apperr.NotFound, "invalid or expired token")
	}

	now := s.Now()
	if now.UnixMilli() > rec.ExpiresAt {
		return Outcome{}, apperr.New(apperr.Expired, "token has expired")
	}

	ok, err := s.tokens.MarkTokenUsed(ctx, token, now.UnixMilli())
	if err != nil {
		return Outcome{}, fmt.Errorf("mark token used: %w", err)
	}
	if !ok {
		return Outcome{}, apperr.New(apperr.NotFound, "invalid or expired token")
	}

	log := s.log.WithFields(logrus.Fields{
		"task_id": rec.TaskID,
		"user_id": rec.UserID,
		"action":  rec.Action,
	})
	out, err := s.dispatch(ctx, *rec)
	if err != nil {
		log.WithError(err).Warn("token redemption rejected")
		return Outcome{}, err
	}
	log.Info("token redeemed")
	return out, nil
}

func (s *Service) dispatch(ctx context.Context, rec models.ActionToken) (Outcome, error) {
	t, err := s.tasks.GetTaskByID(ctx, rec.TaskID)
	if err != nil {
		return Outcome{}, fmt.Errorf("get task %s: %w", rec.TaskID, err)
	}
	if t == nil {
		return Outcome{}, apperr.New(apperr.NotFound, "task not found")
	}
	out := Outcome{Success: true, Action: rec.Action, TaskID: rec.TaskID}

	switch rec.Action {
	case models.ActionConfirm:
		if t.Status == models.StatusConfirmed {
			out.AlreadyConfirmed = true
			out.Message = "Task was already confirmed"
			return out, nil
		}
		if _, err := s.lc.Confirm(ctx, rec.TaskID, rec.UserID); err != nil {
			return Outcome{}, err
		}
		out.Message = "Task confirmed successfully"
		return out, nil

	case models.ActionDecline:
		if t.Status == models.StatusConfirmed {
			return Outcome{}, apperr.New(apperr.PreconditionFailed, "cannot decline a confirmed task")
		}
		if _, err := s.lc.Decline(ctx, rec.TaskID, rec.UserID); err != nil {
			return Outcome{}, err
		}
		out.Message = "Task declined"
		return out, nil
	}
	return Outcome{}, apperr.New(apperr.InvalidArgument, "unknown token action %q", rec.Action)
}
