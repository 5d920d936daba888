package repository

import (
	"database/sql"

	"github.com/unclebandit/flowsend-backend/internal/model"
)

// UserRepositoryInterface defines the read access the dispatch core needs
type UserRepositoryInterface interface {
	GetByID(id int) (*model.User, error)
	ListAll() ([]model.User, error)
}

// UserRepository is the concrete implementation
type UserRepository struct {
	DB *sql.DB
}

// GetByID fetches a user by ID
func (r *UserRepository) GetByID(id int) (*model.User, error) {
	query := `
        SELECT id, email, name, created_at
        FROM users
        WHERE id = $1
    `
	row := r.DB.QueryRow(query, id)

	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &u, nil
}

// ListAll fetches every user, ordered by ID so that resolving the same
// audience twice yields the same sequence.
func (r *UserRepository) ListAll() ([]model.User, error) {
	query := `
        SELECT id, email, name, created_at
        FROM users
        ORDER BY id
    `
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

var _ UserRepositoryInterface = (*UserRepository)(nil)
