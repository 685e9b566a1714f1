// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/dberr"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/users/account"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
	"github.com/taibuivan/gatekeeper/pkg/pagination"
	"github.com/taibuivan/gatekeeper/pkg/pointer"
	"github.com/taibuivan/gatekeeper/pkg/uuid"
)

// # Fakes

type memoryAccounts struct {
	mu      sync.Mutex
	users   []*auth.User
	deleted map[string]bool
	updates []account.Changes
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{deleted: map[string]bool{}}
}

func (m *memoryAccounts) live() []*auth.User {
	var result []*auth.User
	for _, user := range m.users {
		if !m.deleted[user.ID] {
			result = append(result, user)
		}
	}
	return result
}

func (m *memoryAccounts) List(_ context.Context, filter account.ListFilter) ([]*auth.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []*auth.User
	for _, user := range m.live() {
		if filter.Search != "" && !strings.Contains(user.Username, filter.Search) && !strings.Contains(user.Email, filter.Search) {
			continue
		}
		if len(filter.Roles) > 0 && !slices.Contains(filter.Roles, user.RoleName) {
			continue
		}
		if filter.IsActive != nil && user.IsActive != *filter.IsActive {
			continue
		}
		copied := *user
		matches = append(matches, &copied)
	}

	start := min(filter.Page.Offset(), len(matches))
	end := min(start+filter.Page.Limit, len(matches))
	return matches[start:end], len(matches), nil
}

func (m *memoryAccounts) find(match func(*auth.User) bool) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.live() {
		if match(user) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (m *memoryAccounts) FindByID(_ context.Context, id string) (*auth.User, error) {
	return m.find(func(user *auth.User) bool { return user.ID == id })
}

func (m *memoryAccounts) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	return m.find(func(user *auth.User) bool { return user.Email == email })
}

func (m *memoryAccounts) clash(id, username, email string) error {
	for _, user := range m.live() {
		if user.ID == id {
			continue
		}
		if user.Username == username {
			return apperr.Conflict("Username is already in use")
		}
		if user.Email == email {
			return apperr.Conflict("Email is already in use")
		}
	}
	return nil
}

func (m *memoryAccounts) Create(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.clash(user.ID, user.Username, user.Email); err != nil {
		return err
	}
	copied := *user
	m.users = append(m.users, &copied)
	return nil
}

func (m *memoryAccounts) Update(_ context.Context, id string, changes account.Changes) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.live() {
		if user.ID != id {
			continue
		}
		next := *user
		next.Username = pointer.Fallback(changes.Username, next.Username)
		next.Email = pointer.Fallback(changes.Email, next.Email)
		next.PasswordHash = pointer.Fallback(changes.PasswordHash, next.PasswordHash)
		next.RoleName = pointer.Fallback(changes.Role, next.RoleName)
		next.IsActive = pointer.Fallback(changes.IsActive, next.IsActive)

		if err := m.clash(id, next.Username, next.Email); err != nil {
			return nil, err
		}

		m.updates = append(m.updates, changes)
		*user = next
		copied := next
		return &copied, nil
	}
	return nil, dberr.ErrNotFound
}

func (m *memoryAccounts) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.live() {
		if user.ID == id {
			m.deleted[id] = true
			return nil
		}
	}
	return dberr.ErrNotFound
}

func (m *memoryAccounts) Stats(_ context.Context) (*account.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &account.Stats{UsersByRole: map[sec.RoleName]int{}}
	for _, user := range m.live() {
		stats.TotalUsers++
		if user.IsActive {
			stats.ActiveUsers++
		} else {
			stats.InactiveUsers++
		}
		stats.UsersByRole[user.RoleName]++
	}
	return stats, nil
}

type memoryRoles map[sec.RoleName]*auth.Role

func (m memoryRoles) FindByName(_ context.Context, name sec.RoleName) (*auth.Role, error) {
	if role, ok := m[name]; ok {
		return role, nil
	}
	return nil, dberr.ErrNotFound
}

// Every role except guest is registered.
func registeredRoles() memoryRoles {
	return memoryRoles{
		sec.RoleAdmin:     {Name: sec.RoleAdmin, IsActive: true},
		sec.RoleManager:   {Name: sec.RoleManager, IsActive: true},
		sec.RoleDeveloper: {Name: sec.RoleDeveloper, IsActive: true},
		sec.RoleUser:      {Name: sec.RoleUser, IsActive: true},
	}
}

func newService() (*account.Service, *memoryAccounts) {
	accounts := newMemoryAccounts()
	return account.NewService(accounts, registeredRoles()), accounts
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	appErr := apperr.As(err)
	require.NotNil(t, appErr, "expected an AppError, got %v", err)
	require.Equal(t, apperr.CodeValidation, appErr.Code)

	var fields []string
	for _, detail := range appErr.Details {
		fields = append(fields, detail.Field)
	}
	return fields
}

// # Create

/*
TestService_Create normalises identifiers, hashes the password and applies defaults.
*/
func TestService_Create(t *testing.T) {
	service, _ := newService()

	user, err := service.Create(context.Background(), account.CreateInput{
		Username: "  Dave ",
		Email:    "Dave@Example.COM",
		Password: "secret1",
	})

	require.NoError(t, err)
	assert.True(t, uuid.Valid(user.ID))
	assert.Equal(t, "dave", user.Username)
	assert.Equal(t, "dave@example.com", user.Email)
	assert.Equal(t, sec.RoleUser, user.RoleName)
	assert.True(t, user.IsActive)
	assert.True(t, sec.CheckPasswordHash("secret1", user.PasswordHash))
	assert.WithinDuration(t, time.Now(), user.CreatedAt, time.Minute)

	inactive, err := service.Create(context.Background(), account.CreateInput{
		Username: "erin", Email: "erin@example.com", Password: "secret1",
		Role: sec.RoleManager, IsActive: pointer.To(false),
	})
	require.NoError(t, err)
	assert.False(t, inactive.IsActive)
	assert.Equal(t, sec.RoleManager, inactive.RoleName)
}

func TestService_CreateValidation(t *testing.T) {
	service, accounts := newService()

	tests := []struct {
		name   string
		input  account.CreateInput
		fields []string
	}{
		{"empty", account.CreateInput{}, []string{"username", "email", "password"}},
		{"short_username", account.CreateInput{Username: "ab", Email: "a@b.co", Password: "secret1"}, []string{"username"}},
		{"long_username", account.CreateInput{Username: strings.Repeat("a", 21), Email: "a@b.co", Password: "secret1"}, []string{"username"}},
		{"username_charset", account.CreateInput{Username: "bad name", Email: "a@b.co", Password: "secret1"}, []string{"username"}},
		{"bad_email", account.CreateInput{Username: "frank", Email: "not-an-email", Password: "secret1"}, []string{"email"}},
		{"short_password", account.CreateInput{Username: "frank", Email: "f@b.co", Password: "12345"}, []string{"password"}},
		{"long_password", account.CreateInput{Username: "frank", Email: "f@b.co", Password: strings.Repeat("x", 73)}, []string{"password"}},
		{"unknown_role", account.CreateInput{Username: "frank", Email: "f@b.co", Password: "secret1", Role: "root"}, []string{"role"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(context.Background(), tt.input)
			assert.ElementsMatch(t, tt.fields, fieldsOf(t, err))
		})
	}

	assert.Empty(t, accounts.users)
}

func TestService_CreateRoleNotRegistered(t *testing.T) {
	service, _ := newService()

	_, err := service.Create(context.Background(), account.CreateInput{
		Username: "gina", Email: "gina@example.com", Password: "secret1", Role: sec.RoleGuest,
	})

	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
	assert.Equal(t, "Role not found", apperr.As(err).Message)
}

func TestService_CreateDuplicate(t *testing.T) {
	service, _ := newService()
	ctx := context.Background()

	_, err := service.Create(ctx, account.CreateInput{Username: "hank", Email: "hank@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = service.Create(ctx, account.CreateInput{Username: "HANK", Email: "other@example.com", Password: "secret1"})
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict))

	_, err = service.Create(ctx, account.CreateInput{Username: "hank2", Email: "Hank@Example.com", Password: "secret1"})
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict))
}

// # Update

/*
TestService_UpdateWritesOnlyTheDiff checks that unchanged fields never reach the store.
*/
func TestService_UpdateWritesOnlyTheDiff(t *testing.T) {
	service, accounts := newService()
	ctx := context.Background()

	user, err := service.Create(ctx, account.CreateInput{Username: "ivan", Email: "ivan@example.com", Password: "secret1"})
	require.NoError(t, err)

	// Same values, different case: nothing to write.
	unchanged, err := service.Update(ctx, user.ID, account.UserPatch{
		Username: pointer.To("IVAN"),
		IsActive: pointer.To(true),
		Role:     pointer.To(sec.RoleUser),
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, unchanged.ID)
	assert.Empty(t, accounts.updates)

	// Role and status change; username stays.
	updated, err := service.Update(ctx, user.ID, account.UserPatch{
		Username: pointer.To("ivan"),
		Role:     pointer.To(sec.RoleDeveloper),
		IsActive: pointer.To(false),
	})
	require.NoError(t, err)
	assert.Equal(t, sec.RoleDeveloper, updated.RoleName)
	assert.False(t, updated.IsActive)

	require.Len(t, accounts.updates, 1)
	written := accounts.updates[0]
	assert.Nil(t, written.Username)
	assert.Nil(t, written.Email)
	assert.Nil(t, written.PasswordHash)
	assert.Equal(t, sec.RoleDeveloper, *written.Role)
	assert.False(t, *written.IsActive)
}

func TestService_UpdatePassword(t *testing.T) {
	service, _ := newService()
	ctx := context.Background()

	user, err := service.Create(ctx, account.CreateInput{Username: "judy", Email: "judy@example.com", Password: "secret1"})
	require.NoError(t, err)

	updated, err := service.Update(ctx, user.ID, account.UserPatch{Password: pointer.To("secret2")})
	require.NoError(t, err)

	assert.True(t, sec.CheckPasswordHash("secret2", updated.PasswordHash))
	assert.False(t, sec.CheckPasswordHash("secret1", updated.PasswordHash))
}

func TestService_UpdateFailures(t *testing.T) {
	service, _ := newService()
	ctx := context.Background()

	first, err := service.Create(ctx, account.CreateInput{Username: "kate", Email: "kate@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = service.Create(ctx, account.CreateInput{Username: "liam", Email: "liam@example.com", Password: "secret1"})
	require.NoError(t, err)

	t.Run("username_taken", func(t *testing.T) {
		_, err := service.Update(ctx, first.ID, account.UserPatch{Username: pointer.To("liam")})
		assert.True(t, apperr.HasCode(err, apperr.CodeConflict))
	})

	t.Run("email_taken", func(t *testing.T) {
		_, err := service.Update(ctx, first.ID, account.UserPatch{Email: pointer.To("LIAM@example.com")})
		assert.True(t, apperr.HasCode(err, apperr.CodeConflict))
	})

	t.Run("role_not_registered", func(t *testing.T) {
		_, err := service.Update(ctx, first.ID, account.UserPatch{Role: pointer.To(sec.RoleGuest)})
		assert.Equal(t, "Role not found", apperr.As(err).Message)
	})

	t.Run("invalid_fields", func(t *testing.T) {
		_, err := service.Update(ctx, first.ID, account.UserPatch{
			Username: pointer.To("x"),
			Email:    pointer.To(""),
			Role:     pointer.To(sec.RoleName("root")),
		})
		assert.ElementsMatch(t, []string{"username", "email", "role"}, fieldsOf(t, err))
	})

	t.Run("unknown_user", func(t *testing.T) {
		_, err := service.Update(ctx, uuid.Must(), account.UserPatch{IsActive: pointer.To(false)})
		assert.Equal(t, "User not found", apperr.As(err).Message)
	})

	t.Run("malformed_id", func(t *testing.T) {
		_, err := service.Update(ctx, "not-a-uuid", account.UserPatch{})
		assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
	})
}

// # Delete / Get / List

func TestService_Delete(t *testing.T) {
	service, _ := newService()
	ctx := context.Background()

	user, err := service.Create(ctx, account.CreateInput{Username: "mia", Email: "mia@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, user.ID))

	_, err = service.Get(ctx, user.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	err = service.Delete(ctx, user.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	// The username is free again once the holder is deleted.
	_, err = service.Create(ctx, account.CreateInput{Username: "mia", Email: "mia@example.com", Password: "secret1"})
	assert.NoError(t, err)
}

func TestService_List(t *testing.T) {
	service, _ := newService()
	ctx := context.Background()

	for _, input := range []account.CreateInput{
		{Username: "nina", Email: "nina@example.com", Password: "secret1", Role: sec.RoleAdmin},
		{Username: "omar", Email: "omar@example.com", Password: "secret1"},
		{Username: "pia", Email: "pia@corp.test", Password: "secret1", IsActive: pointer.To(false)},
	} {
		_, err := service.Create(ctx, input)
		require.NoError(t, err)
	}

	page := pagination.Params{Page: 1, Limit: 10}

	users, total, err := service.List(ctx, account.ListFilter{Roles: []sec.RoleName{sec.RoleUser}, Page: page})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, users, 2)

	users, total, err = service.List(ctx, account.ListFilter{IsActive: pointer.To(false), Page: page})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "pia", users[0].Username)

	users, _, err = service.List(ctx, account.ListFilter{Search: "nothing-matches", Page: page})
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)

	_, _, err = service.List(ctx, account.ListFilter{Roles: []sec.RoleName{"root"}, Page: page})
	assert.Equal(t, []string{"role"}, fieldsOf(t, err))
}

func TestService_Stats(t *testing.T) {
	service, _ := newService()
	ctx := context.Background()

	_, err := service.Create(ctx, account.CreateInput{Username: "quinn", Email: "q@example.com", Password: "secret1", Role: sec.RoleAdmin})
	require.NoError(t, err)
	_, err = service.Create(ctx, account.CreateInput{Username: "rosa", Email: "r@example.com", Password: "secret1", IsActive: pointer.To(false)})
	require.NoError(t, err)

	stats, err := service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.ActiveUsers)
	assert.Equal(t, 1, stats.InactiveUsers)
	assert.Equal(t, map[sec.RoleName]int{sec.RoleAdmin: 1, sec.RoleUser: 1}, stats.UsersByRole)
}

// # Bootstrap

func TestService_EnsureAdmin(t *testing.T) {
	service, accounts := newService()
	ctx := context.Background()
	seed := account.AdminSeed{Username: "root", Email: "Root@Example.com", Password: "change-me-now"}

	created, err := service.EnsureAdmin(ctx, seed)
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := accounts.FindByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, sec.RoleAdmin, admin.RoleName)
	assert.True(t, admin.IsActive)

	created, err = service.EnsureAdmin(ctx, seed)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, accounts.users, 1)

	_, err = service.EnsureAdmin(ctx, account.AdminSeed{Username: "x", Email: "x@example.com", Password: "change-me-now"})
	assert.Error(t, err, "an invalid seed is reported, not ignored")
}
