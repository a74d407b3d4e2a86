package db

import "context"

const userColumns = `id, auth_subject, email, name, created_at, updated_at`

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.AuthSubject, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const getUserBySubject = `SELECT ` + userColumns + ` FROM users WHERE auth_subject = $1`

func (q *Queries) GetUserBySubject(ctx context.Context, subject string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserBySubject, subject))
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

type UpsertUserParams struct {
	AuthSubject string
	Email       string
	Name        string
}

// Empty email or name never overwrite stored values.
const upsertUser = `INSERT INTO users (auth_subject, email, name)
VALUES ($1, $2, $3)
ON CONFLICT (auth_subject) DO UPDATE
SET email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
    name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
    updated_at = now()
RETURNING ` + userColumns

func (q *Queries) UpsertUser(ctx context.Context, arg UpsertUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, upsertUser, arg.AuthSubject, arg.Email, arg.Name))
}
