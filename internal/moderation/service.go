package moderation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fromchat/chat-core-service/internal/audit"
	"github.com/fromchat/chat-core-service/internal/domain/model"
	"github.com/fromchat/chat-core-service/internal/profanity"
	"github.com/fromchat/chat-core-service/internal/store"
)

// Hub is the fan-out surface moderation notifies through.
type Hub interface {
	ToUser(userID int64, u model.Update)
	Broadcast(u model.Update)
}

// Service carries the owner-gated account mutations and the spam
// monitor's automatic suspension path. Ownership checks on the actor
// happen at the HTTP edge; the service re-checks the target-side rules.
type Service struct {
	store  *store.Store
	hub    Hub
	sink   *audit.Sink
	filter *profanity.Filter
	logger *slog.Logger
}

func NewService(store *store.Store, hub Hub, sink *audit.Sink, filter *profanity.Filter, logger *slog.Logger) *Service {
	return &Service{store: store, hub: hub, sink: sink, filter: filter, logger: logger}
}

// Suspend flags the target and tells every live session immediately. No
// device sessions are revoked; policy denies the next authenticated
// request, so clients observe the effect through the update either way.
func (s *Service) Suspend(ctx context.Context, actor *model.User, targetID int64, reason string) error {
	target, err := s.store.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	if target.IsOwner() {
		return model.Forbidden("The owner cannot be suspended")
	}
	if err := s.store.SuspendUser(ctx, targetID, reason); err != nil {
		return err
	}
	s.hub.ToUser(targetID, model.AccountSuspended(reason))
	s.sink.AdminSuspend(actor, target, reason)
	s.logger.Info("user suspended", "target_id", targetID, "actor_id", actor.ID)
	return nil
}

// Unsuspend clears the suspension flags.
func (s *Service) Unsuspend(ctx context.Context, actor *model.User, targetID int64) error {
	target, err := s.store.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.store.UnsuspendUser(ctx, targetID); err != nil {
		return err
	}
	s.sink.AdminUnsuspend(actor, target)
	s.logger.Info("user unsuspended", "target_id", targetID, "actor_id", actor.ID)
	return nil
}

// DeleteUser tombstones the account, revokes its device sessions and
// removes key material and push endpoints. Deletion is sticky.
func (s *Service) DeleteUser(ctx context.Context, actor *model.User, targetID int64) error {
	target, err := s.store.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	if target.IsOwner() {
		return model.Forbidden("The owner cannot be deleted")
	}
	if err := s.store.MarkUserDeleted(ctx, targetID); err != nil {
		return err
	}
	if err := s.store.RevokeAllDeviceSessions(ctx, targetID); err != nil {
		return fmt.Errorf("revoke sessions of deleted user: %w", err)
	}
	if err := s.store.DeleteCryptoArtifacts(ctx, targetID); err != nil {
		s.logger.Warn("crypto cleanup failed", "target_id", targetID, "error", err)
	}
	if err := s.store.DeletePushSubscriptions(ctx, targetID); err != nil {
		s.logger.Warn("push cleanup failed", "target_id", targetID, "error", err)
	}
	s.hub.ToUser(targetID, model.AccountDeletedUpdate())
	s.sink.AdminDeleteUser(actor, target)
	s.logger.Info("user deleted", "target_id", targetID, "actor_id", actor.ID)
	return nil
}

// ToggleVerify flips the verification badge and returns the new state.
func (s *Service) ToggleVerify(ctx context.Context, actor *model.User, targetID int64) (bool, error) {
	target, err := s.store.GetUser(ctx, targetID)
	if err != nil {
		return false, err
	}
	verified := !target.Verified
	if err := s.store.SetUserVerified(ctx, targetID, verified); err != nil {
		return false, err
	}
	s.sink.AdminVerifyToggle(actor, target, verified)
	return verified, nil
}

// BlocklistEntries returns the current filter terms.
func (s *Service) BlocklistEntries() []string {
	return s.filter.Entries()
}

// BlocklistAdd inserts terms into the filter and audits the change.
func (s *Service) BlocklistAdd(ctx context.Context, actor *model.User, words []string) (added, entries []string, err error) {
	added, entries, err = s.filter.Add(words)
	if err != nil {
		return nil, nil, err
	}
	if len(added) > 0 {
		s.sink.BlocklistAdd(actor, added)
	}
	return added, entries, nil
}

// BlocklistRemove drops terms from the filter and audits the change.
func (s *Service) BlocklistRemove(ctx context.Context, actor *model.User, words []string) (removed, entries []string, err error) {
	removed, entries, err = s.filter.Remove(words)
	if err != nil {
		return nil, nil, err
	}
	if len(removed) > 0 {
		s.sink.BlocklistRemove(actor, removed)
	}
	return removed, entries, nil
}

// AutoSuspend is the spam monitor's entry point: delete the offending
// rows, suspend the account, announce both and audit at warning level.
func (s *Service) AutoSuspend(ctx context.Context, user *model.User, matchType, reason string, messageIDs []int64, samples []string) error {
	if user.IsOwner() || user.Suspended {
		return nil
	}
	deleted, err := s.store.DeleteMessagesByIDs(ctx, messageIDs)
	if err != nil {
		return fmt.Errorf("delete spam messages: %w", err)
	}
	if err := s.store.SuspendUser(ctx, user.ID, reason); err != nil {
		return fmt.Errorf("suspend spammer: %w", err)
	}
	for _, id := range messageIDs {
		s.hub.Broadcast(model.MessageDeleted(id))
	}
	s.hub.ToUser(user.ID, model.AccountSuspended(reason))
	s.sink.AutoSuspension(user, matchType, reason, int(deleted), samples)
	s.logger.Warn("automatic suspension",
		"user_id", user.ID, "match", matchType, "messages_deleted", deleted)
	return nil
}
