package queries

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-datainsight/pkg/backend"
)

// UsersRequest carries the admin token used to list accounts.
type UsersRequest struct {
	Token string
}

// UserRow is one line of the user management table.
type UserRow struct {
	backend.User
	// Deletable is false for the built-in admin account.
	Deletable bool
}

type usersClient interface {
	ListUsers(ctx context.Context, token string) ([]backend.User, error)
}

// UsersQuery lists backend accounts for the management page.
type UsersQuery struct {
	client usersClient
}

// NewUsersQuery builds the query.
func NewUsersQuery(client usersClient) *UsersQuery {
	return &UsersQuery{client: client}
}

var _ gocommand.Querier[UsersRequest, []UserRow] = (*UsersQuery)(nil)

// Query fetches the accounts.
func (q *UsersQuery) Query(ctx context.Context, req UsersRequest) ([]UserRow, error) {
	if q.client == nil {
		return nil, errors.New("users query requires client")
	}
	users, err := q.client.ListUsers(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	rows := make([]UserRow, len(users))
	for i, u := range users {
		rows[i] = UserRow{User: u, Deletable: u.Username != "admin"}
	}
	return rows, nil
}
