package service

import "context"

// AccountRemover deletes a user together with everything keyed on them.
type AccountRemover interface {
	Delete(ctx context.Context, userID int64) error
}

type ResetService struct {
	accounts AccountRemover
}

func NewResetService(accounts AccountRemover) *ResetService {
	return &ResetService{accounts: accounts}
}

// ResetUser deletes the user's account. Settings, the progress ledger and
// completion history are removed with it; the next update registers the
// user again with default settings.
func (s *ResetService) ResetUser(ctx context.Context, userID int64) error {
	return s.accounts.Delete(ctx, userID)
}
