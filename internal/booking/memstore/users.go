package memstore

import (
    "context"
    "strings"
    "sync"
    "time"

    "github.com/iliyamo/dining-table-reservation/internal/model"
    "github.com/iliyamo/dining-table-reservation/internal/repository"
    "github.com/iliyamo/dining-table-reservation/internal/utils"
)

// Users is the user table of a Store.  It shares the Store's data so that
// administrative reservation listings can show names and emails.
type Users struct{ s *Store }

// Users returns the user view of s.
func (s *Store) Users() *Users { return &Users{s: s} }

// Create inserts a user and returns its id.
func (u *Users) Create(ctx context.Context, email, name, password, role string, cost int) (uint64, error) {
    if err := ctx.Err(); err != nil {
        return 0, err
    }
    email = strings.ToLower(strings.TrimSpace(email))
    hash, err := utils.HashPassword(password, cost)
    if err != nil {
        return 0, err
    }
    u.s.mu.Lock()
    defer u.s.mu.Unlock()
    for _, existing := range u.s.users {
        if existing.Email == email {
            return 0, repository.ErrEmailExists
        }
    }
    u.s.nextUserID++
    now := time.Now().UTC()
    u.s.users[u.s.nextUserID] = &model.User{
        ID:           u.s.nextUserID,
        Email:        email,
        Name:         name,
        PasswordHash: hash,
        Role:         role,
        IsActive:     true,
        CreatedAt:    now,
        UpdatedAt:    now,
    }
    return u.s.nextUserID, nil
}

// GetByEmail fetches a user by normalized email.
func (u *Users) GetByEmail(ctx context.Context, email string) (model.User, error) {
    if err := ctx.Err(); err != nil {
        return model.User{}, err
    }
    email = strings.ToLower(strings.TrimSpace(email))
    u.s.mu.Lock()
    defer u.s.mu.Unlock()
    for _, usr := range u.s.users {
        if usr.Email == email {
            return *usr, nil
        }
    }
    return model.User{}, repository.ErrUserNotFound
}

// GetByID fetches a user by id.
func (u *Users) GetByID(ctx context.Context, id uint64) (model.User, error) {
    if err := ctx.Err(); err != nil {
        return model.User{}, err
    }
    u.s.mu.Lock()
    defer u.s.mu.Unlock()
    if usr, ok := u.s.users[id]; ok {
        return *usr, nil
    }
    return model.User{}, repository.ErrUserNotFound
}

// Tokens keeps refresh token hashes in memory.
type Tokens struct {
    mu   sync.Mutex
    rows map[string]*model.RefreshToken
}

// NewTokens returns an empty token table.
func NewTokens() *Tokens { return &Tokens{rows: make(map[string]*model.RefreshToken)} }

// StoreRefresh records a refresh token hash.
func (t *Tokens) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    t.mu.Lock()
    defer t.mu.Unlock()
    t.rows[tokenHash] = &model.RefreshToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: time.Now().UTC()}
    return nil
}

// ValidateRefresh returns the owner of a live token.
func (t *Tokens) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
    if err := ctx.Err(); err != nil {
        return 0, err
    }
    t.mu.Lock()
    defer t.mu.Unlock()
    row, ok := t.rows[tokenHash]
    if !ok || row.RevokedAt != nil || time.Now().UTC().After(row.ExpiresAt) {
        return 0, repository.ErrTokenInvalid
    }
    return row.UserID, nil
}

// RevokeByHash marks a token as revoked.
func (t *Tokens) RevokeByHash(ctx context.Context, tokenHash string) error {
    t.mu.Lock()
    defer t.mu.Unlock()
    if row, ok := t.rows[tokenHash]; ok && row.RevokedAt == nil {
        now := time.Now().UTC()
        row.RevokedAt = &now
    }
    return ctx.Err()
}

// RevokeAllForUser revokes all of a user's live tokens.
func (t *Tokens) RevokeAllForUser(ctx context.Context, userID uint64) error {
    t.mu.Lock()
    defer t.mu.Unlock()
    now := time.Now().UTC()
    for _, row := range t.rows {
        if row.UserID == userID && row.RevokedAt == nil {
            row.RevokedAt = &now
        }
    }
    return ctx.Err()
}
