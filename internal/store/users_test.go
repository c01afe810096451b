package store

import (
	"context"
	"testing"

	"github.com/aarondl/null/v8"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "mojca", "hash123", model.RoleStock)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Role != model.RoleStock {
		t.Errorf("expected role %q, got %q", model.RoleStock, user.Role)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "mojca" {
		t.Errorf("expected username 'mojca', got %q", got.Username)
	}
}

func TestGetUserByUsernameSkipsDeleted(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "alice", "hash", model.RoleAdmin)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	found, err := GetUserByUsername(ctx, database, "alice")
	if err != nil || found == nil {
		t.Fatalf("GetUserByUsername: %v, %v", found, err)
	}

	if err := DeleteUser(ctx, database, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	found, err = GetUserByUsername(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if found != nil {
		t.Error("expected deleted user to be hidden")
	}

	// The username is free again once the old account is deleted.
	if _, err := CreateUser(ctx, database, "alice", "hash", model.RoleUser); err != nil {
		t.Fatalf("recreating user: %v", err)
	}
}

func TestDeleteUserUnlinksEmployee(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "bob", "hash", model.RoleUser)
	emp, err := CreateEmployee(ctx, database, "Bob", null.Int64From(user.ID), null.Int64{})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}

	if err := DeleteUser(ctx, database, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	got, _ := GetEmployee(ctx, database, emp.ID)
	if got.UserID.Valid {
		t.Errorf("expected employee to be unlinked, got user %d", got.UserID.Int64)
	}
}

func TestCountAdmins(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "a", "hash", model.RoleAdmin)
	CreateUser(ctx, database, "b", "hash", model.RoleStock)
	c, _ := CreateUser(ctx, database, "c", "hash", model.RoleAdmin)
	UpdateUserRole(ctx, database, c.ID, model.RoleUser)

	n, err := CountAdmins(ctx, database)
	if err != nil {
		t.Fatalf("CountAdmins: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 admin, got %d", n)
	}

	users, _ := ListUsers(ctx, database)
	if len(users) != 3 {
		t.Errorf("expected 3 users, got %d", len(users))
	}
}

func TestUpdateUserPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "pwuser", "oldhash", model.RoleUser)
	UpdateUserPassword(ctx, database, user.ID, "newhash")

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}
}
